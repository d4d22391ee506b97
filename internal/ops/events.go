package ops

import (
	"context"
	"fmt"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
)

// EventsInput contains parameters for the Events operation.
type EventsInput struct {
	// PrayerID limits the journal to one prayer's timeline.
	PrayerID *uint64

	// Kind limits to one event kind; empty means all.
	Kind string

	// Ascending returns oldest first (timeline order) instead of the
	// default newest first.
	Ascending bool

	Limit  int
	Offset int
}

// EventsOutput contains the result of the Events operation.
type EventsOutput struct {
	Events     []ledger.Event `json:"events"`
	Pagination Pagination     `json:"pagination"`
}

var knownEventKinds = map[string]bool{
	ledger.EventChainInitialized: true,
	ledger.EventAgentRegistered:  true,
	ledger.EventAirdrop:          true,
	ledger.EventPrayerPosted:     true,
	ledger.EventPrayerClaimed:    true,
	ledger.EventContentDelivered: true,
	ledger.EventPrayerAnswered:   true,
	ledger.EventPrayerConfirmed:  true,
	ledger.EventPrayerCancelled:  true,
	ledger.EventClaimRemoved:     true,
	ledger.EventPrayerClosed:     true,
}

// Events pages through the journal. The journal outlives the records it
// describes, so this is the only window into closed prayers.
func Events(ctx context.Context, store ledger.Store, input EventsInput) (*EventsOutput, error) {
	if input.Kind != "" && !knownEventKinds[input.Kind] {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown event kind %q", input.Kind))
	}

	limit, offset := clampPage(input.Limit, input.Offset, DefaultEventLimit, MaxEventLimit)
	q := ledger.EventQuery{
		PrayerID:  input.PrayerID,
		Kind:      input.Kind,
		Ascending: input.Ascending,
		Limit:     limit,
		Offset:    offset,
	}

	var out *EventsOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		total, err := tx.CountEvents(ctx, q)
		if err != nil {
			return errors.NewInternal(err)
		}
		events, err := tx.Events(ctx, q)
		if err != nil {
			return errors.NewInternal(err)
		}

		out = &EventsOutput{
			Events: events,
			Pagination: Pagination{
				Limit:   limit,
				Offset:  offset,
				HasMore: int64(offset+len(events)) < total,
				Total:   int(total),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
