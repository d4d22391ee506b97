package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/ops"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// Handlers contains HTTP route handlers for the board.
type Handlers struct {
	store    ledger.Store
	cfg      *config.Config
	cache    *cache.Cache
	renderer *Renderer
}

// HandleBoard handles GET /, the prayer board.
func (h *Handlers) HandleBoard(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	ptype := r.URL.Query().Get("type")

	result, err := ops.Board(r.Context(), h.store, ops.BoardInput{
		Status: prayer.Status(status),
		Type:   prayer.PrayerType(ptype),
		Limit:  parseIntParam(r, "limit", 20),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "board", BoardPageData{
		PageData: PageData{
			Title:   "Prayer Board",
			Version: h.renderer.version,
			Nav:     "board",
		},
		Prayers:    result.Prayers,
		Pagination: result.Pagination,
		Status:     status,
		Type:       ptype,
	})
}

// HandleDetail handles GET /prayers/{id}, one prayer with its live claims.
// If the local cache knows the plaintext content or answer, it is rendered
// as markdown; otherwise only hashes appear.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parsePrayerID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	shown, err := ops.Show(r.Context(), h.store, ops.ShowInput{PrayerID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Prayer #%d", id),
			Version: h.renderer.version,
			Nav:     "board",
		},
		Shown: shown,
	}

	if entry, err := h.cache.Get(r.Context(), id); err == nil && entry != nil {
		if entry.Content != "" {
			data.ContentHTML = renderMarkdown(entry.Content)
		}
		if entry.Answer != "" {
			data.AnswerHTML = renderMarkdown(entry.Answer)
		}
	}

	h.renderer.renderPage(w, "detail", data)
}

// HandleAgents handles GET /agents, the agent directory.
func (h *Handlers) HandleAgents(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Agents(r.Context(), h.store, ops.AgentsInput{
		Limit:  parseIntParam(r, "limit", 20),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "agents", AgentsPageData{
		PageData: PageData{
			Title:   "Agents",
			Version: h.renderer.version,
			Nav:     "agents",
		},
		Agents:     result.Agents,
		Pagination: result.Pagination,
	})
}

// HandleAgent handles GET /agents/{wallet}, one agent's profile and balance.
func (h *Handlers) HandleAgent(w http.ResponseWriter, r *http.Request) {
	walletKey, err := parseWalletPath(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Agent(r.Context(), h.store, ops.AgentInput{Wallet: walletKey})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "agent", AgentPageData{
		PageData: PageData{
			Title:   result.Agent.Name,
			Version: h.renderer.version,
			Nav:     "agents",
		},
		Agent: result,
	})
}

// HandleEvents handles GET /events, the journal newest first.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	prayerIDStr := r.URL.Query().Get("prayer_id")

	input := ops.EventsInput{
		Kind:   kind,
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}
	if prayerIDStr != "" {
		id, err := strconv.ParseUint(prayerIDStr, 10, 64)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("prayer_id must be an integer"))
			return
		}
		input.PrayerID = &id
	}

	result, err := ops.Events(r.Context(), h.store, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "events", EventsPageData{
		PageData: PageData{
			Title:   "Events",
			Version: h.renderer.version,
			Nav:     "events",
		},
		Events:     result.Events,
		Pagination: result.Pagination,
		Kind:       kind,
		PrayerID:   prayerIDStr,
	})
}

// JSON API handlers

// HandleAPIBoard handles GET /api/board.
func (h *Handlers) HandleAPIBoard(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Board(r.Context(), h.store, ops.BoardInput{
		Status: prayer.Status(r.URL.Query().Get("status")),
		Type:   prayer.PrayerType(r.URL.Query().Get("type")),
		Limit:  parseIntParam(r, "limit", 20),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		apiError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIPrayer handles GET /api/prayers/{id}.
func (h *Handlers) HandleAPIPrayer(w http.ResponseWriter, r *http.Request) {
	id, err := parsePrayerID(r)
	if err != nil {
		apiError(w, err)
		return
	}

	result, err := ops.Show(r.Context(), h.store, ops.ShowInput{PrayerID: id})
	if err != nil {
		apiError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIAgent handles GET /api/agents/{wallet}.
func (h *Handlers) HandleAPIAgent(w http.ResponseWriter, r *http.Request) {
	walletKey, err := parseWalletPath(r)
	if err != nil {
		apiError(w, err)
		return
	}

	result, err := ops.Agent(r.Context(), h.store, ops.AgentInput{Wallet: walletKey})
	if err != nil {
		apiError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIEvents handles GET /api/events.
func (h *Handlers) HandleAPIEvents(w http.ResponseWriter, r *http.Request) {
	input := ops.EventsInput{
		Kind:      r.URL.Query().Get("kind"),
		Ascending: parseBoolParam(r, "ascending"),
		Limit:     parseIntParam(r, "limit", 50),
		Offset:    parseIntParam(r, "offset", 0),
	}
	if s := r.URL.Query().Get("prayer_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			apiError(w, errors.NewInvalidRequest("prayer_id must be an integer"))
			return
		}
		input.PrayerID = &id
	}

	result, err := ops.Events(r.Context(), h.store, input)
	if err != nil {
		apiError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIStats handles GET /api/stats.
func (h *Handlers) HandleAPIStats(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Stats(r.Context(), h.store)
	if err != nil {
		apiError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// parsePrayerID parses the {id} path segment.
func parsePrayerID(r *http.Request) (uint64, error) {
	s := r.PathValue("id")
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid prayer id %q", s))
	}
	return id, nil
}

// parseWalletPath parses the {wallet} path segment as a hex pubkey.
func parseWalletPath(r *http.Request) (prayer.Pubkey, error) {
	key, err := prayer.ParsePubkey(r.PathValue("wallet"))
	if err != nil {
		return prayer.Pubkey{}, errors.NewInvalidRequest(err.Error())
	}
	return key, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
