// Package domain defines the data model shared across the bot. This file
// holds the one GORM-mapped type: the append-only history of alerts the
// watch scheduler has pushed to users.
package domain

import "time"

// Alert is a recorded watch notification. One row is written per push so
// that /history can show a user what the bot told them and when, even after
// the ephemeral suggestions that produced the message are gone.
type Alert struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      int64     `gorm:"type:INTEGER NOT NULL;index:idx_user_alerts"`
	Suggestions int       `gorm:"type:INTEGER NOT NULL"`
	Text        string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime;index:idx_user_alerts"`
}

// TableName implements the GORM tabler interface.
func (Alert) TableName() string { return "alerts" }
