package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	Address prayer.Address     `json:"address"`
	Chain   *prayer.ChainState `json:"chain"`

	// Live record counts by kind. Chain counters only ever grow; these
	// reflect what currently exists.
	Agents  int64 `json:"agents"`
	Prayers int64 `json:"prayers"`
	Claims  int64 `json:"claims"`

	// WalletUnits + RecordUnits is every native unit the ledger holds.
	WalletUnits uint64 `json:"wallet_units"`
	RecordUnits uint64 `json:"record_units"`
	TotalUnits  uint64 `json:"total_units"`
}

// Stats reports the chain counters, live record counts, and where the
// ledger's units sit.
func Stats(ctx context.Context, store ledger.Store) (*StatsOutput, error) {
	var out *StatsOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		chain, _, err := loadChain(ctx, tx)
		if err != nil {
			return err
		}

		agents, err := tx.CountAccounts(ctx, prayer.KindAgent)
		if err != nil {
			return errors.NewInternal(err)
		}
		prayers, err := tx.CountAccounts(ctx, prayer.KindPrayer)
		if err != nil {
			return errors.NewInternal(err)
		}
		claims, err := tx.CountAccounts(ctx, prayer.KindClaim)
		if err != nil {
			return errors.NewInternal(err)
		}

		wallets, records, err := tx.Totals(ctx)
		if err != nil {
			return errors.NewInternal(err)
		}

		out = &StatsOutput{
			Address:     prayer.ChainAddress(),
			Chain:       chain,
			Agents:      agents,
			Prayers:     prayers,
			Claims:      claims,
			WalletUnits: wallets,
			RecordUnits: records,
			TotalUnits:  wallets + records,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
