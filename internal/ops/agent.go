package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// AgentInput contains parameters for the Agent operation.
type AgentInput struct {
	Wallet prayer.Pubkey
}

// AgentOutput contains the result of the Agent operation.
type AgentOutput struct {
	Address prayer.Address       `json:"address"`
	Agent   *prayer.AgentProfile `json:"agent"`
	Balance uint64               `json:"balance"`
}

// Agent loads one profile by wallet, together with the wallet's spendable
// balance.
func Agent(ctx context.Context, store ledger.Store, input AgentInput) (*AgentOutput, error) {
	if input.Wallet.IsZero() {
		return nil, errors.NewInvalidRequest("wallet is required")
	}

	var out *AgentOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		agent, _, err := loadAgent(ctx, tx, input.Wallet)
		if err != nil {
			return err
		}
		balance, err := tx.WalletBalance(ctx, input.Wallet.String())
		if err != nil {
			return errors.NewInternal(err)
		}
		out = &AgentOutput{
			Address: prayer.AgentAddress(input.Wallet),
			Agent:   agent,
			Balance: balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AgentsInput contains parameters for the Agents operation.
type AgentsInput struct {
	Limit  int
	Offset int
}

// AgentsOutput contains the result of the Agents operation.
type AgentsOutput struct {
	Agents     []prayer.AgentProfile `json:"agents"`
	Pagination Pagination            `json:"pagination"`
}

// Agents lists registered profiles, newest first.
func Agents(ctx context.Context, store ledger.Store, input AgentsInput) (*AgentsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset, DefaultAgentLimit, MaxAgentLimit)

	var out *AgentsOutput
	err := store.View(ctx, func(tx ledger.Tx) error {
		total, err := tx.CountAccounts(ctx, prayer.KindAgent)
		if err != nil {
			return errors.NewInternal(err)
		}
		accts, err := tx.ScanAccounts(ctx, prayer.KindAgent, limit, offset)
		if err != nil {
			return errors.NewInternal(err)
		}

		agents := make([]prayer.AgentProfile, 0, len(accts))
		for _, acct := range accts {
			agent, err := prayer.DecodeAgent(acct.Data)
			if err != nil {
				return errors.NewInternal(err)
			}
			agents = append(agents, *agent)
		}

		out = &AgentsOutput{
			Agents: agents,
			Pagination: Pagination{
				Limit:   limit,
				Offset:  offset,
				HasMore: int64(offset+len(agents)) < total,
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
