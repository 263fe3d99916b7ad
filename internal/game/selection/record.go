// Package selection stores each actor's write-once power choice and persists
// it through an optional field cipher.
package selection

import (
	"time"

	"github.com/google/uuid"
)

// Record is one actor's selection state.
type Record struct {
	ActorID uuid.UUID
	// PowerID is empty while HasSelected is false.
	PowerID     string
	HasSelected bool
	// LastChange is zero for records that were loaded or never selected.
	LastChange time.Time
}

// CanChange reports whether cooldown has elapsed since the last change.
// No store operation consults it; reselection is only possible after Reset.
func (r Record) CanChange(now time.Time, cooldown time.Duration) bool {
	if !r.HasSelected || r.LastChange.IsZero() {
		return true
	}
	return now.Sub(r.LastChange) >= cooldown
}

// Entry is the persisted form of a selected record. Power holds the power id,
// encrypted when a cipher is active.
type Entry struct {
	ActorID string `db:"actor_id"`
	Power   string `db:"power"`
}
