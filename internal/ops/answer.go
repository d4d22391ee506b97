package ops

import (
	"context"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/metrics"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// AnswerInput contains parameters for the Answer operation.
type AnswerInput struct {
	Answerer        prayer.Pubkey
	PrayerID        uint64
	AnswerHash      prayer.Hash
	EncryptedAnswer []byte
}

// AnswerOutput contains the result of the Answer operation.
type AnswerOutput struct {
	Prayer     *prayer.PrayerRecord `json:"prayer"`
	Reputation uint64               `json:"reputation"`
}

// Answer fulfills a prayer. The answerer must hold a claim on it; the sealed
// answer is addressed to the requester and rides on the prayer record. First
// answer wins: the transition to Fulfilled shuts the window for everyone
// else. Expiry is never checked here.
func Answer(ctx context.Context, store ledger.Store, input AnswerInput) (out *AnswerOutput, err error) {
	defer func() { metrics.ObserveTransition("answer", err) }()

	if input.Answerer.IsZero() {
		return nil, errors.NewInvalidRequest("answerer wallet is required")
	}
	if err := prayer.ValidateSealedPayload(input.EncryptedAnswer); err != nil {
		return nil, err
	}

	err = store.Update(ctx, func(tx ledger.Tx) error {
		rec, prayerAcct, err := loadPrayer(ctx, tx, input.PrayerID)
		if err != nil {
			return err
		}

		if !rec.Status.Workable() {
			return errors.NewNotClaimed(string(rec.Status))
		}
		if _, _, err := loadClaim(ctx, tx, input.PrayerID, input.Answerer); err != nil {
			return err
		}

		agent, agentAcct, err := loadAgent(ctx, tx, input.Answerer)
		if err != nil {
			return err
		}
		chain, chainAcct, err := loadChain(ctx, tx)
		if err != nil {
			return err
		}

		answerer := input.Answerer
		answerHash := input.AnswerHash
		rec.Status = prayer.StatusFulfilled
		rec.Answerer = &answerer
		rec.AnswerHash = &answerHash
		rec.EncryptedAnswer = input.EncryptedAnswer
		rec.FulfilledAt = now()
		if err := saveRecord(ctx, tx, prayerAcct, rec); err != nil {
			return err
		}

		agent.PrayersAnswered++
		agent.Reputation += prayer.AnswerReputation
		if err := saveRecord(ctx, tx, agentAcct, agent); err != nil {
			return err
		}

		chain.TotalAnswered++
		if err := saveRecord(ctx, tx, chainAcct, chain); err != nil {
			return err
		}

		payload := struct {
			Answerer   prayer.Pubkey `json:"answerer"`
			AnswerHash prayer.Hash   `json:"answer_hash"`
			Bytes      int           `json:"bytes"`
		}{input.Answerer, input.AnswerHash, len(input.EncryptedAnswer)}
		if err := appendEvent(ctx, tx, ledger.EventPrayerAnswered, &input.PrayerID, payload); err != nil {
			return err
		}

		out = &AnswerOutput{Prayer: rec, Reputation: agent.Reputation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
