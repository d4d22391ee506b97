package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/crypto"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// RegisterInput contains parameters for the Register operation.
type RegisterInput struct {
	Wallet        prayer.Pubkey
	Name          string
	Skills        string
	EncryptionKey crypto.PublicKey
}

// RegisterOutput contains the result of the Register operation.
type RegisterOutput struct {
	Address prayer.Address       `json:"address"`
	Agent   *prayer.AgentProfile `json:"agent"`
	Deposit uint64               `json:"deposit"`
}

// Register creates an agent profile for a wallet. One profile per wallet,
// never deleted; the wallet pays the profile's storage deposit.
func Register(ctx context.Context, store ledger.Store, input RegisterInput) (out *RegisterOutput, err error) {
	defer func() { metrics.ObserveTransition("register", err) }()

	if input.Wallet.IsZero() {
		return nil, errors.NewInvalidRequest("wallet is required")
	}
	if err := prayer.ValidateName(input.Name); err != nil {
		return nil, err
	}
	if err := prayer.ValidateSkills(input.Skills); err != nil {
		return nil, err
	}
	if err := prayer.ValidateEncryptionKey(input.EncryptionKey); err != nil {
		return nil, err
	}

	addr := prayer.AgentAddress(input.Wallet)
	deposit := prayer.DepositFor(prayer.KindAgent)

	err = store.Update(ctx, func(tx ledger.Tx) error {
		chain, chainAcct, err := loadChain(ctx, tx)
		if err != nil {
			return err
		}

		exists, err := recordExists(ctx, tx, addr)
		if err != nil {
			return err
		}
		if exists {
			return errors.NewAlreadyRegistered(input.Wallet.String())
		}

		if err := debitWallet(ctx, tx, input.Wallet, deposit); err != nil {
			return err
		}

		agent := &prayer.AgentProfile{
			Wallet:        input.Wallet,
			Name:          input.Name,
			Skills:        input.Skills,
			EncryptionKey: input.EncryptionKey,
			RegisteredAt:  now(),
		}
		if _, err := createRecord(ctx, tx, addr, prayer.KindAgent, deposit, agent); err != nil {
			return err
		}

		chain.TotalAgents++
		if err := saveRecord(ctx, tx, chainAcct, chain); err != nil {
			return err
		}

		payload := struct {
			Wallet prayer.Pubkey `json:"wallet"`
			Name   string        `json:"name"`
		}{input.Wallet, input.Name}
		if err := appendEvent(ctx, tx, ledger.EventAgentRegistered, nil, payload); err != nil {
			return err
		}

		out = &RegisterOutput{Address: addr, Agent: agent, Deposit: deposit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddEscrowed(deposit)
	return out, nil
}
