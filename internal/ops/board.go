package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// BoardInput contains parameters for the Board operation.
type BoardInput struct {
	// Status filters by lifecycle state; empty means all.
	Status prayer.Status

	// Type filters by prayer type; empty means all.
	Type prayer.PrayerType

	Limit  int
	Offset int
}

// BoardEntry is one prayer on the board.
type BoardEntry struct {
	Address prayer.Address       `json:"address"`
	Prayer  *prayer.PrayerRecord `json:"prayer"`
	Expired bool                 `json:"expired"`
}

// BoardOutput contains the result of the Board operation.
type BoardOutput struct {
	Prayers    []BoardEntry `json:"prayers"`
	Pagination Pagination   `json:"pagination"`
}

// Board lists prayers newest first. Filters apply before pagination, so a
// filtered page is a page of the filtered set. Expired workable prayers are
// included and flagged; callers decide whether to show them.
func Board(ctx context.Context, store ledger.Store, input BoardInput) (*BoardOutput, error) {
	if input.Status != "" {
		switch input.Status {
		case prayer.StatusOpen, prayer.StatusActive, prayer.StatusFulfilled, prayer.StatusConfirmed, prayer.StatusCancelled:
		default:
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown status %q", string(input.Status)))
		}
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown prayer type %q", string(input.Type)))
	}

	limit, offset := clampPage(input.Limit, input.Offset, DefaultBoardLimit, MaxBoardLimit)
	ts := now()

	var out *BoardOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		accts, err := tx.ScanAccounts(ctx, prayer.KindPrayer, 0, 0)
		if err != nil {
			return errors.NewInternal(err)
		}

		matched := make([]BoardEntry, 0, len(accts))
		for _, acct := range accts {
			rec, err := prayer.DecodePrayer(acct.Data)
			if err != nil {
				return errors.NewInternal(err)
			}
			if input.Status != "" && rec.Status != input.Status {
				continue
			}
			if input.Type != "" && rec.Type != input.Type {
				continue
			}
			addr, err := prayer.ParseAddress(acct.Address)
			if err != nil {
				return errors.NewInternal(err)
			}
			matched = append(matched, BoardEntry{
				Address: addr,
				Prayer:  rec,
				Expired: rec.Expired(ts),
			})
		}

		// Prayer IDs are assigned monotonically, so sorting by ID gives
		// newest-first exactly even when records share a timestamp.
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].Prayer.ID > matched[j].Prayer.ID
		})

		total := len(matched)
		page := matched
		if offset >= len(page) {
			page = nil
		} else {
			page = page[offset:]
		}
		if len(page) > limit {
			page = page[:limit]
		}

		out = &BoardOutput{
			Prayers: page,
			Pagination: Pagination{
				Limit:   limit,
				Offset:  offset,
				HasMore: offset+len(page) < total,
				Total:   total,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
