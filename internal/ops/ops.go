// Package ops implements the prayer exchange's lifecycle operations, one
// file per operation. Every write runs inside a single ledger Update
// closure, so each transition commits all of its record mutations and fund
// movements together or not at all. Reads run against View and never block
// writers.
package ops

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
)

// Pagination limits for read accessors.
const (
	DefaultBoardLimit = 20
	MaxBoardLimit     = 100
	DefaultEventLimit = 50
	MaxEventLimit     = 200
	DefaultAgentLimit = 50
	MaxAgentLimit     = 200
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// clampPage applies defaults and bounds to a limit/offset pair.
func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// now returns the Unix timestamp all operations stamp records with.
func now() int64 {
	return time.Now().Unix()
}

// appendEvent journals one lifecycle event. The payload must marshal; a
// failure here aborts the surrounding transaction, keeping the journal in
// lockstep with record state.
func appendEvent(ctx context.Context, tx ledger.Tx, kind string, prayerID *uint64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternal(err)
	}
	if _, err := tx.AppendEvent(ctx, ledger.Event{
		Kind:      kind,
		PrayerID:  prayerID,
		Payload:   raw,
		CreatedAt: now(),
	}); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
