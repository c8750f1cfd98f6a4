package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

type fakeWatchStats struct{ n int }

func (f fakeWatchStats) ActiveCount() int { return f.n }

func newRouter(t *testing.T, stats WatchStats) (*gin.Engine, *state.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	r := gin.New()
	RegisterRoutes(r, st, stats)
	return r, st
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, fakeWatchStats{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("GET /health -> %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing correlation header")
	}
}

func TestMetricsExposition(t *testing.T) {
	r, _ := newRouter(t, fakeWatchStats{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("exposition missing collectors:\n%.200s", w.Body.String())
	}
}

func TestStatus_ReportsCounts(t *testing.T) {
	r, st := newRouter(t, fakeWatchStats{n: 2})
	if err := st.SetConnection(7, "conn-1"); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceCatalog([]domain.GiftCatalogEntry{{ID: "g1"}, {ID: "g2"}}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status -> %d", w.Code)
	}

	var got struct {
		Connections   int `json:"connections"`
		ActiveWatches int `json:"active_watches"`
		CatalogSize   int `json:"catalog_size"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if got.Connections != 1 || got.ActiveWatches != 2 || got.CatalogSize != 2 {
		t.Fatalf("status counts wrong: %+v", got)
	}
}

func TestNoRoute(t *testing.T) {
	r, _ := newRouter(t, fakeWatchStats{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("GET /nope -> %d %s", w.Code, w.Body.String())
	}
}
