package watch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nvoronin/go-gift-analyst/internal/domain"
	"github.com/nvoronin/go-gift-analyst/internal/services"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

// ----- Fakes -----

type fakePortfolio struct {
	mu    sync.Mutex
	snap  domain.PortfolioSnapshot
	err   error
	calls int
}

func (f *fakePortfolio) Refresh(context.Context, int64) (domain.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakePortfolio) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCatalog struct {
	catalog map[string]domain.GiftCatalogEntry
	err     error
}

func (f *fakeCatalog) CachedOrRefresh(context.Context) (map[string]domain.GiftCatalogEntry, error) {
	return f.catalog, f.err
}

type fakeSender struct {
	mu    sync.Mutex
	chats []int64
	texts []string
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, chatID)
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeRecorder struct {
	mu     sync.Mutex
	users  []int64
	counts []int
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, userID int64, n int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, userID)
	f.counts = append(f.counts, n)
	return nil
}

func renderLines(ss []domain.Suggestion) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, s.Title+"\n"+s.Details)
	}
	return strings.Join(parts, "\n\n")
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return s
}

func newScheduler(t *testing.T, interval time.Duration, p *fakePortfolio, snd *fakeSender, hist Recorder) (*Scheduler, *state.Store) {
	t.Helper()
	st := newStore(t)
	s := New(interval, p, &fakeCatalog{}, services.StubQuoteProvider{},
		services.NewAnalysisEngine(), st, snd, hist, renderLines)
	t.Cleanup(s.Shutdown)
	return s, st
}

// ----- Registration -----

func TestStartWatch_PersistsSettings(t *testing.T) {
	s, st := newScheduler(t, time.Hour, &fakePortfolio{}, &fakeSender{}, nil)

	if err := s.StartWatch(7, 100, 5); err != nil {
		t.Fatalf("StartWatch error: %v", err)
	}
	got := st.Settings(7)
	if got.MinProfitStars != 100 || got.MinProfitPct != 5 {
		t.Fatalf("settings not persisted: %+v", got)
	}
}

func TestStartWatch_IdempotentReplacement(t *testing.T) {
	s, _ := newScheduler(t, time.Hour, &fakePortfolio{}, &fakeSender{}, nil)

	if err := s.StartWatch(7, 100, 0); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	first := s.entries[7]
	s.mu.Unlock()

	if err := s.StartWatch(7, 200, 1); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	second := s.entries[7]
	n := len(s.entries)
	s.mu.Unlock()

	if n != 1 {
		t.Fatalf("expected exactly one registered timer, got %d", n)
	}
	if first == second {
		t.Fatalf("re-registration must replace the timer entry")
	}
	if !s.Active(7) {
		t.Fatalf("user should still be active after replacement")
	}
}

func TestStopWatch(t *testing.T) {
	s, _ := newScheduler(t, time.Hour, &fakePortfolio{}, &fakeSender{}, nil)

	if s.StopWatch(7) {
		t.Fatalf("StopWatch on unregistered user should report false")
	}
	if err := s.StartWatch(7, 0, 0); err != nil {
		t.Fatal(err)
	}
	if !s.StopWatch(7) {
		t.Fatalf("StopWatch should report an armed timer")
	}
	if s.Active(7) {
		t.Fatalf("user must be inactive after StopWatch")
	}
}

// ----- Tick behavior -----

func conv(v int64) *int64 { return &v }

func TestTick_PushesAlertAndRecordsHistory(t *testing.T) {
	p := &fakePortfolio{snap: domain.PortfolioSnapshot{
		TotalCount: 1,
		Gifts: []domain.GiftRecord{
			domain.NewRegularRecord(domain.RegularGift{GiftID: "g1", Title: "🧸", ConvertStarCount: conv(150)}),
		},
	}}
	snd := &fakeSender{}
	hist := &fakeRecorder{}
	s, st := newScheduler(t, time.Hour, p, snd, hist)
	if err := st.SetChat(7, 700); err != nil {
		t.Fatal(err)
	}
	if err := st.SetSettings(7, domain.UserSettings{MinProfitStars: 100}); err != nil {
		t.Fatal(err)
	}

	s.tick(context.Background(), 7, &entry{})

	sent := snd.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(sent))
	}
	if !strings.HasPrefix(sent[0], "Portfolio update:") || !strings.Contains(sent[0], "150") {
		t.Fatalf("alert text unexpected: %q", sent[0])
	}
	if len(snd.chats) != 1 || snd.chats[0] != 700 {
		t.Fatalf("alert must go to the bound chat: %v", snd.chats)
	}
	if len(hist.users) != 1 || hist.users[0] != 7 || hist.counts[0] != 1 {
		t.Fatalf("history not recorded: %+v", hist)
	}
}

func TestTick_NoChatBindingIsSilent(t *testing.T) {
	p := &fakePortfolio{}
	snd := &fakeSender{}
	s, _ := newScheduler(t, time.Hour, p, snd, nil)

	s.tick(context.Background(), 7, &entry{})

	if len(snd.sent()) != 0 {
		t.Fatalf("tick without chat binding must deliver nothing")
	}
}

func TestTick_FetchErrorContained(t *testing.T) {
	p := &fakePortfolio{err: errors.New("flood wait")}
	snd := &fakeSender{}
	s, st := newScheduler(t, time.Hour, p, snd, nil)
	if err := st.SetChat(7, 700); err != nil {
		t.Fatal(err)
	}

	// Must not panic and must not deliver anything.
	s.tick(context.Background(), 7, &entry{})

	if len(snd.sent()) != 0 {
		t.Fatalf("failed fetch must suppress delivery")
	}
}

func TestTick_SendErrorContained(t *testing.T) {
	p := &fakePortfolio{}
	snd := &fakeSender{err: errors.New("blocked by user")}
	hist := &fakeRecorder{}
	s, st := newScheduler(t, time.Hour, p, snd, hist)
	if err := st.SetChat(7, 700); err != nil {
		t.Fatal(err)
	}

	s.tick(context.Background(), 7, &entry{})

	if len(hist.users) != 0 {
		t.Fatalf("failed delivery must not be archived")
	}
}

func TestTick_BusySkipsOverlap(t *testing.T) {
	p := &fakePortfolio{}
	s, st := newScheduler(t, time.Hour, p, &fakeSender{}, nil)
	if err := st.SetChat(7, 700); err != nil {
		t.Fatal(err)
	}

	e := &entry{}
	e.busy.Store(true) // simulate a tick still in flight

	s.tick(context.Background(), 7, e)

	if p.callCount() != 0 {
		t.Fatalf("overlapping tick must be skipped entirely")
	}
	if !e.busy.Load() {
		t.Fatalf("skip must not clear the in-flight flag")
	}
}

// ----- Timer wiring -----

func TestRun_FiresPeriodicallyUntilStopped(t *testing.T) {
	p := &fakePortfolio{}
	s, _ := newScheduler(t, 5*time.Millisecond, p, &fakeSender{}, nil)

	if err := s.StartWatch(7, 0, 0); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.callCount() < 2 {
		t.Fatalf("timer did not fire repeatedly")
	}

	s.StopWatch(7)
	settled := p.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := p.callCount(); got > settled+1 {
		t.Fatalf("timer kept firing after StopWatch: %d -> %d", settled, got)
	}
}
