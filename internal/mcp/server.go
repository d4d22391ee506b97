package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/wallet"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"chain", "agent", "wallet", "prayer"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"chain_initialize": {
		def:     initializeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInitialize },
	},
	"chain_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"agent_register": {
		def:     registerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRegister },
	},
	"agent_show": {
		def:     agentShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAgentShow },
	},
	"prayer_post": {
		def:     postToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePost },
	},
	"prayer_claim": {
		def:     claimToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClaim },
	},
	"prayer_deliver": {
		def:     deliverToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeliver },
	},
	"prayer_answer": {
		def:     answerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnswer },
	},
	"prayer_confirm": {
		def:     confirmToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfirm },
	},
	"prayer_cancel": {
		def:     cancelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCancel },
	},
	"prayer_unclaim": {
		def:     unclaimToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUnclaim },
	},
	"prayer_close": {
		def:     closeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClose },
	},
	"prayer_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"prayer_board": {
		def:     boardToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBoard },
	},
	"wallet_airdrop": {
		def:     airdropToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAirdrop },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "prayer_post" → "prayer").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Chorus tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(store ledger.Store, cfg *config.Config, w *wallet.Wallet, c *cache.Cache, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"chorus",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, cfg, w, c)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store ledger.Store, cfg *config.Config, w *wallet.Wallet, c *cache.Cache, version string) error {
	s := NewServer(store, cfg, w, c, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
