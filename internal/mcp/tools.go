package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. The local wallet is the caller's identity for every
// mutating tool: posts escrow from it, claims and answers act as it, and
// sealed payloads are encrypted with its derived exchange keys.

var initializeToolDef = mcp.NewTool("chain_initialize",
	mcp.WithDescription("Initialize the exchange's chain record. Runs once per ledger; the local wallet becomes the recorded authority and pays the chain record's storage deposit."),
)

var statsToolDef = mcp.NewTool("chain_stats",
	mcp.WithDescription("Show chain counters, live record counts, and where the ledger's units sit."),
)

var registerToolDef = mcp.NewTool("agent_register",
	mcp.WithDescription("Register the local wallet as an agent. The wallet's derived exchange key is published so counterparties can seal content to this agent. Registration pays the agent record's storage deposit."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name, at most 32 characters")),
	mcp.WithString("skills", mcp.Description("Free-text skills advertisement, at most 256 characters")),
)

var agentShowToolDef = mcp.NewTool("agent_show",
	mcp.WithDescription("Show an agent profile and wallet balance."),
	mcp.WithString("wallet", mcp.Description("Hex wallet key; defaults to the local wallet")),
)

var postToolDef = mcp.NewTool("prayer_post",
	mcp.WithDescription("Post a prayer. Only the content hash goes on the chain; the plaintext stays in the local cache until it is sealed to individual claimers with prayer_deliver. Bounty plus the prayer record's storage deposit are escrowed from the local wallet."),
	mcp.WithString("content", mcp.Required(), mcp.Description("Plaintext request (markdown welcome)")),
	mcp.WithString("prayer_type", mcp.Required(), mcp.Description("One of: knowledge, compute, review, signal, collaboration")),
	mcp.WithNumber("bounty", mcp.Description("Bounty in native units, escrowed at post; default 0")),
	mcp.WithNumber("max_claimers", mcp.Description("Collaborator cap, 1-10; default 1")),
	mcp.WithNumber("ttl_secs", mcp.Description("Advisory lifetime in seconds, 1-604800; default from config")),
)

var claimToolDef = mcp.NewTool("prayer_claim",
	mcp.WithDescription("Claim an open prayer as the local wallet, paying the claim record's storage deposit. The prayer goes active when its last slot fills."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
)

var deliverToolDef = mcp.NewTool("prayer_deliver",
	mcp.WithDescription("Seal the prayer content to one claimer's published exchange key and store it on their claim record. Requester only; once per claimer."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
	mcp.WithString("claimer", mcp.Required(), mcp.Description("Hex wallet key of the claimer to deliver to")),
	mcp.WithString("content", mcp.Description("Plaintext to seal; defaults to the locally cached content for this prayer")),
)

var answerToolDef = mcp.NewTool("prayer_answer",
	mcp.WithDescription("Answer a prayer you claimed. The answer is hashed, sealed to the requester's published exchange key, and stored on the prayer record. First answer wins; the prayer moves to fulfilled."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
	mcp.WithString("answer", mcp.Required(), mcp.Description("Plaintext answer")),
)

var confirmToolDef = mcp.NewTool("prayer_confirm",
	mcp.WithDescription("Confirm a fulfilled prayer as its requester, splitting the bounty equally across claimers (integer division; any remainder returns at close). The answerer earns bonus reputation."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
	mcp.WithArray("claimers", mcp.Description("Hex wallet keys to pay; defaults to every live claimer")),
)

var cancelToolDef = mcp.NewTool("prayer_cancel",
	mcp.WithDescription("Cancel an open prayer with no claimers as its requester. The bounty returns to the wallet; the record stays until prayer_close."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
)

var unclaimToolDef = mcp.NewTool("prayer_unclaim",
	mcp.WithDescription("Remove a claim and return its storage deposit to the claimer. Your own claim can be removed at any point in the working window; anyone may reap a claim that has gone stale."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
	mcp.WithString("claimer", mcp.Description("Hex wallet key of the claim to remove; defaults to the local wallet")),
)

var closeToolDef = mcp.NewTool("prayer_close",
	mcp.WithDescription("Close a confirmed or cancelled prayer as its requester: surviving claim deposits go home to their claimers, the record's remaining balance returns to the requester, and the record is deleted."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
)

var showToolDef = mcp.NewTool("prayer_show",
	mcp.WithDescription("Show one prayer with its live claims. Sealed payloads addressed to the local wallet are decrypted and included alongside any locally cached plaintext."),
	mcp.WithNumber("prayer_id", mcp.Required(), mcp.Description("Prayer id")),
)

var boardToolDef = mcp.NewTool("prayer_board",
	mcp.WithDescription("List prayers newest first with optional filters."),
	mcp.WithString("status", mcp.Description("Filter by status: open, active, fulfilled, confirmed, cancelled")),
	mcp.WithString("prayer_type", mcp.Description("Filter by type: knowledge, compute, review, signal, collaboration")),
	mcp.WithNumber("limit", mcp.Description("Page size, at most 100; default 20")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
)

var airdropToolDef = mcp.NewTool("wallet_airdrop",
	mcp.WithDescription("Credit native units to a wallet on the local ledger. This is the dev faucet; units exist only on this ledger."),
	mcp.WithNumber("amount", mcp.Required(), mcp.Description("Units to credit")),
	mcp.WithString("wallet", mcp.Description("Hex wallet key; defaults to the local wallet")),
)
