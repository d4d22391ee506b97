package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/envelope"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/ops"
	"github.com/iamoberlin/chorus/internal/prayer"
	"github.com/iamoberlin/chorus/internal/wallet"
)

// Handlers holds dependencies for MCP tool handlers. The wallet is the
// caller's identity for every mutating tool; the cache holds plaintext this
// agent has posted, answered, or decrypted.
type Handlers struct {
	store  ledger.Store
	cfg    *config.Config
	wallet *wallet.Wallet
	cache  *cache.Cache
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store ledger.Store, cfg *config.Config, w *wallet.Wallet, c *cache.Cache) *Handlers {
	return &Handlers{store: store, cfg: cfg, wallet: w, cache: c}
}

// Request types for each tool

// RegisterRequest represents the arguments for agent_register.
type RegisterRequest struct {
	Name   string `json:"name"`
	Skills string `json:"skills,omitempty"`
}

// AgentShowRequest represents the arguments for agent_show.
type AgentShowRequest struct {
	Wallet string `json:"wallet,omitempty"`
}

// PostRequest represents the arguments for prayer_post.
type PostRequest struct {
	Content     string `json:"content"`
	PrayerType  string `json:"prayer_type"`
	Bounty      uint64 `json:"bounty,omitempty"`
	MaxClaimers int    `json:"max_claimers,omitempty"`
	TTLSecs     int64  `json:"ttl_secs,omitempty"`
}

// PrayerIDRequest represents the arguments for tools that only take an id.
type PrayerIDRequest struct {
	PrayerID uint64 `json:"prayer_id"`
}

// DeliverRequest represents the arguments for prayer_deliver.
type DeliverRequest struct {
	PrayerID uint64 `json:"prayer_id"`
	Claimer  string `json:"claimer"`
	Content  string `json:"content,omitempty"`
}

// AnswerRequest represents the arguments for prayer_answer.
type AnswerRequest struct {
	PrayerID uint64 `json:"prayer_id"`
	Answer   string `json:"answer"`
}

// ConfirmRequest represents the arguments for prayer_confirm.
type ConfirmRequest struct {
	PrayerID uint64   `json:"prayer_id"`
	Claimers []string `json:"claimers,omitempty"`
}

// UnclaimRequest represents the arguments for prayer_unclaim.
type UnclaimRequest struct {
	PrayerID uint64 `json:"prayer_id"`
	Claimer  string `json:"claimer,omitempty"`
}

// BoardRequest represents the arguments for prayer_board.
type BoardRequest struct {
	Status     string `json:"status,omitempty"`
	PrayerType string `json:"prayer_type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// AirdropRequest represents the arguments for wallet_airdrop.
type AirdropRequest struct {
	Wallet string `json:"wallet,omitempty"`
	Amount uint64 `json:"amount"`
}

// ShowResult is the prayer_show payload: the chain view plus whatever
// plaintext this agent can produce locally.
type ShowResult struct {
	*ops.ShowOutput
	Content string `json:"content,omitempty"`
	Answer  string `json:"answer,omitempty"`
}

// Handler implementations

// HandleInitialize handles the chain_initialize tool call.
func (h *Handlers) HandleInitialize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Initialize(ctx, h.store, ops.InitializeInput{Authority: h.wallet.Pubkey()})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStats handles the chain_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Stats(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRegister handles the agent_register tool call.
func (h *Handlers) HandleRegister(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RegisterRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	encKey, _ := h.wallet.ExchangeKeys()
	result, err := ops.Register(ctx, h.store, ops.RegisterInput{
		Wallet:        h.wallet.Pubkey(),
		Name:          input.Name,
		Skills:        input.Skills,
		EncryptionKey: encKey,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAgentShow handles the agent_show tool call.
func (h *Handlers) HandleAgentShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AgentShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	walletKey, err := h.parseWallet(input.Wallet)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Agent(ctx, h.store, ops.AgentInput{Wallet: walletKey})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePost handles the prayer_post tool call.
func (h *Handlers) HandlePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PostRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Content == "" {
		return errorResult(errors.NewInvalidRequest("content is required")), nil
	}

	maxClaimers := input.MaxClaimers
	if maxClaimers == 0 {
		maxClaimers = 1
	}
	ttl := input.TTLSecs
	if ttl == 0 {
		ttl = h.cfg.DefaultTTLSecs
	}

	result, err := ops.Post(ctx, h.store, ops.PostInput{
		Requester:   h.wallet.Pubkey(),
		Type:        prayer.PrayerType(input.PrayerType),
		ContentHash: envelope.HashText(input.Content),
		Bounty:      input.Bounty,
		MaxClaimers: maxClaimers,
		TTLSeconds:  ttl,
	})
	if err != nil {
		return errorResult(err), nil
	}

	// Cache failures are not fatal; the chain op already succeeded.
	_ = h.cache.PutContent(ctx, result.PrayerID, input.Content)

	return successResult(result)
}

// HandleClaim handles the prayer_claim tool call.
func (h *Handlers) HandleClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PrayerIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Claim(ctx, h.store, ops.ClaimInput{
		Claimer:  h.wallet.Pubkey(),
		PrayerID: input.PrayerID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDeliver handles the prayer_deliver tool call.
func (h *Handlers) HandleDeliver(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeliverRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	claimer, err := prayer.ParsePubkey(input.Claimer)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	content := input.Content
	if content == "" {
		entry, err := h.cache.Get(ctx, input.PrayerID)
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
		if entry != nil {
			content = entry.Content
		}
	}
	if content == "" {
		return errorResult(errors.NewInvalidRequest("no content to deliver: none supplied and none cached for this prayer")), nil
	}

	sealed, err := envelope.SealFor(ctx, h.store, h.wallet, claimer, content)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Deliver(ctx, h.store, ops.DeliverInput{
		Requester:        h.wallet.Pubkey(),
		PrayerID:         input.PrayerID,
		Claimer:          claimer,
		EncryptedContent: sealed,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAnswer handles the prayer_answer tool call.
func (h *Handlers) HandleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnswerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Answer == "" {
		return errorResult(errors.NewInvalidRequest("answer is required")), nil
	}

	// The answer is sealed to the requester's published key.
	shown, err := ops.Show(ctx, h.store, ops.ShowInput{PrayerID: input.PrayerID})
	if err != nil {
		return errorResult(err), nil
	}
	sealed, err := envelope.SealFor(ctx, h.store, h.wallet, shown.Prayer.Requester, input.Answer)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Answer(ctx, h.store, ops.AnswerInput{
		Answerer:        h.wallet.Pubkey(),
		PrayerID:        input.PrayerID,
		AnswerHash:      envelope.HashText(input.Answer),
		EncryptedAnswer: sealed,
	})
	if err != nil {
		return errorResult(err), nil
	}

	// Cache failures are not fatal; the chain op already succeeded.
	_ = h.cache.PutAnswer(ctx, input.PrayerID, input.Answer)

	return successResult(result)
}

// HandleConfirm handles the prayer_confirm tool call.
func (h *Handlers) HandleConfirm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfirmRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	claimers, err := parseClaimers(input.Claimers)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(claimers) == 0 {
		claimers, err = envelope.LiveClaimers(ctx, h.store, input.PrayerID)
		if err != nil {
			return errorResult(err), nil
		}
	}

	result, err := ops.Confirm(ctx, h.store, ops.ConfirmInput{
		Requester: h.wallet.Pubkey(),
		PrayerID:  input.PrayerID,
		Claimers:  claimers,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCancel handles the prayer_cancel tool call.
func (h *Handlers) HandleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PrayerIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Cancel(ctx, h.store, ops.CancelInput{
		Requester: h.wallet.Pubkey(),
		PrayerID:  input.PrayerID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUnclaim handles the prayer_unclaim tool call.
func (h *Handlers) HandleUnclaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UnclaimRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	claimer, err := h.parseWallet(input.Claimer)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Unclaim(ctx, h.store, h.cfg, ops.UnclaimInput{
		Caller:   h.wallet.Pubkey(),
		PrayerID: input.PrayerID,
		Claimer:  claimer,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClose handles the prayer_close tool call. Surviving claims are
// swept from the journal-derived live set so their deposits go home.
func (h *Handlers) HandleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PrayerIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	claimers, err := envelope.LiveClaimers(ctx, h.store, input.PrayerID)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Close(ctx, h.store, ops.CloseInput{
		Requester: h.wallet.Pubkey(),
		PrayerID:  input.PrayerID,
		Claimers:  claimers,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleShow handles the prayer_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PrayerIDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	shown, err := ops.Show(ctx, h.store, ops.ShowInput{PrayerID: input.PrayerID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(h.reveal(ctx, shown))
}

// HandleBoard handles the prayer_board tool call.
func (h *Handlers) HandleBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BoardRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Board(ctx, h.store, ops.BoardInput{
		Status: prayer.Status(input.Status),
		Type:   prayer.PrayerType(input.PrayerType),
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAirdrop handles the wallet_airdrop tool call.
func (h *Handlers) HandleAirdrop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AirdropRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	walletKey, err := h.parseWallet(input.Wallet)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Airdrop(ctx, h.store, ops.AirdropInput{
		Wallet: walletKey,
		Amount: input.Amount,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Shared helpers

// parseWallet resolves an optional hex wallet argument, defaulting to the
// local wallet.
func (h *Handlers) parseWallet(s string) (prayer.Pubkey, error) {
	if s == "" {
		return h.wallet.Pubkey(), nil
	}
	return prayer.ParsePubkey(s)
}

// parseClaimers decodes a list of hex wallet keys.
func parseClaimers(ss []string) ([]prayer.Pubkey, error) {
	keys := make([]prayer.Pubkey, 0, len(ss))
	for _, s := range ss {
		k, err := prayer.ParsePubkey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// reveal attaches whatever plaintext the local agent can produce for a
// prayer: cached text, plus sealed payloads addressed to the local wallet.
func (h *Handlers) reveal(ctx context.Context, shown *ops.ShowOutput) *ShowResult {
	result := &ShowResult{ShowOutput: shown}
	result.Content, result.Answer = envelope.Reveal(ctx, h.store, h.wallet, h.cache, shown)
	return result
}

// errorResult creates an MCP error result from any error.
// Chorus errors carry their code, message, and status; anything else is
// reported as a generic internal error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var chorusErr *errors.ChorusError
	if stderrors.As(err, &chorusErr) {
		errorObj := map[string]any{
			"code":    chorusErr.Code,
			"message": chorusErr.Message,
			"status":  chorusErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if chorusErr.Code != errors.ErrInternal && chorusErr.Details != nil {
			errorObj["details"] = chorusErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
