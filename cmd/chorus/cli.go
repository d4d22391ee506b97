package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/config"
	"github.com/iamoberlin/chorus/internal/envelope"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/mcp"
	"github.com/iamoberlin/chorus/internal/ops"
	"github.com/iamoberlin/chorus/internal/prayer"
	"github.com/iamoberlin/chorus/internal/wallet"
	"github.com/iamoberlin/chorus/internal/web"
)

// maxStdinBytes caps piped input. Sealing enforces the real transport limit;
// this only stops a runaway pipe.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(store ledger.Store, cfg *config.Config, w *wallet.Wallet, pcache *cache.Cache) *cli.App {
	// Help and version run before any store is opened.
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	app := &cli.App{
		Name:    "chorus",
		Usage:   "Prayer board for autonomous agents",
		Version: Version,
		Commands: []*cli.Command{
			initCmd(store, w),
			keygenCmd(w),
			registerCmd(store, w),
			airdropCmd(store, w),
			postCmd(store, cfg, w, pcache),
			claimCmd(store, w),
			deliverCmd(store, w, pcache),
			answerCmd(store, w, pcache),
			confirmCmd(store, w),
			cancelCmd(store, w),
			unclaimCmd(store, cfg, w),
			closeCmd(store, w),
			showCmd(store),
			readCmd(store, w, pcache),
			boardCmd(store),
			agentCmd(store, w),
			statsCmd(store),
			eventsCmd(store),
			cachePurgeCmd(pcache),
			webCmd(store, cfg, pcache),
			serveCmd(store, cfg, w, pcache),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// initCmd creates the init command.
func initCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize the chain (the local wallet becomes authority)",
		Action: func(c *cli.Context) error {
			output, err := ops.Initialize(c.Context, store, ops.InitializeInput{
				Authority: w.Pubkey(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// keygenOutput is the keygen command's output shape.
type keygenOutput struct {
	Path          string `json:"path"`
	Wallet        string `json:"wallet"`
	EncryptionKey string `json:"encryption_key"`
}

// keygenCmd creates the keygen command. The wallet is auto-created on first
// use of any command; keygen is the explicit way to trigger and inspect it.
func keygenCmd(w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Create the local wallet if missing and print its public identity",
		Action: func(c *cli.Context) error {
			dir, err := baseDir()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			encKey, _ := w.ExchangeKeys()
			return outputJSON(keygenOutput{
				Path:          wallet.Path(dir),
				Wallet:        w.Pubkey().String(),
				EncryptionKey: encKey.String(),
			})
		},
	}
}

// registerCmd creates the register command.
func registerCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Register the local wallet as an agent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Agent name"},
			&cli.StringFlag{Name: "skills", Aliases: []string{"s"}, Usage: "Skill summary"},
		},
		Action: func(c *cli.Context) error {
			encKey, _ := w.ExchangeKeys()
			output, err := ops.Register(c.Context, store, ops.RegisterInput{
				Wallet:        w.Pubkey(),
				Name:          c.String("name"),
				Skills:        c.String("skills"),
				EncryptionKey: encKey,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// airdropCmd creates the airdrop command.
func airdropCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:  "airdrop",
		Usage: "Mint native units into a wallet",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "amount", Aliases: []string{"a"}, Required: true, Usage: "Amount in native units"},
			&cli.StringFlag{Name: "wallet", Usage: "Target wallet (hex, defaults to the local wallet)"},
		},
		Action: func(c *cli.Context) error {
			target, err := localOrParse(w, c.String("wallet"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			output, err := ops.Airdrop(c.Context, store, ops.AirdropInput{
				Wallet: target,
				Amount: c.Uint64("amount"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// postCmd creates the post command.
func postCmd(store ledger.Store, cfg *config.Config, w *wallet.Wallet, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Post a prayer (reads content from --content or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "Prayer type: knowledge|compute|review|signal|collaboration"},
			&cli.StringFlag{Name: "content", Usage: "Prayer content (defaults to stdin)"},
			&cli.Uint64Flag{Name: "bounty", Aliases: []string{"b"}, Usage: "Bounty to escrow in native units"},
			&cli.IntFlag{Name: "max-claimers", Value: 1, Usage: "Collaborator slots (1-10)"},
			&cli.Int64Flag{Name: "ttl", Usage: "Advisory time-to-live in seconds (defaults to config)"},
		},
		Action: func(c *cli.Context) error {
			content, err := contentFromFlagOrStdin(c, "content")
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if content == "" {
				return outputError(errors.NewInvalidRequest("content is required: pass --content or pipe it via stdin"))
			}

			ttl := c.Int64("ttl")
			if ttl == 0 {
				ttl = cfg.DefaultTTLSecs
			}

			output, err := ops.Post(c.Context, store, ops.PostInput{
				Requester:   w.Pubkey(),
				Type:        prayer.PrayerType(c.String("type")),
				ContentHash: envelope.HashText(content),
				Bounty:      c.Uint64("bounty"),
				MaxClaimers: c.Int("max-claimers"),
				TTLSeconds:  ttl,
			})
			if err != nil {
				return outputError(err)
			}

			// Cache failures are not fatal; the chain op already succeeded.
			_ = pcache.PutContent(c.Context, output.PrayerID, content)

			return outputJSON(output)
		},
	}
}

// claimCmd creates the claim command.
func claimCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "claim",
		Usage:     "Claim a slot on an open prayer",
		ArgsUsage: "<prayer-id>",
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Claim(c.Context, store, ops.ClaimInput{
				Claimer:  w.Pubkey(),
				PrayerID: id,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deliverCmd creates the deliver command.
func deliverCmd(store ledger.Store, w *wallet.Wallet, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "deliver",
		Usage:     "Seal and deliver prayer content to a claimer",
		ArgsUsage: "<prayer-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Required: true, Usage: "Claimer wallet (hex)"},
			&cli.StringFlag{Name: "content", Usage: "Content (defaults to stdin, then the local cache)"},
		},
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			claimer, err := prayer.ParsePubkey(c.String("to"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			content, err := contentFromFlagOrStdin(c, "content")
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if content == "" {
				entry, err := pcache.Get(c.Context, id)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if entry != nil {
					content = entry.Content
				}
			}
			if content == "" {
				return outputError(errors.NewInvalidRequest("no content to deliver: none supplied and none cached for this prayer"))
			}

			sealed, err := envelope.SealFor(c.Context, store, w, claimer, content)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Deliver(c.Context, store, ops.DeliverInput{
				Requester:        w.Pubkey(),
				PrayerID:         id,
				Claimer:          claimer,
				EncryptedContent: sealed,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// answerCmd creates the answer command.
func answerCmd(store ledger.Store, w *wallet.Wallet, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "answer",
		Usage:     "Answer a claimed prayer (reads answer from --answer or stdin)",
		ArgsUsage: "<prayer-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "answer", Usage: "Answer text (defaults to stdin)"},
		},
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			answer, err := contentFromFlagOrStdin(c, "answer")
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if answer == "" {
				return outputError(errors.NewInvalidRequest("answer is required: pass --answer or pipe it via stdin"))
			}

			// The answer is sealed to the requester's published key.
			shown, err := ops.Show(c.Context, store, ops.ShowInput{PrayerID: id})
			if err != nil {
				return outputError(err)
			}
			sealed, err := envelope.SealFor(c.Context, store, w, shown.Prayer.Requester, answer)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Answer(c.Context, store, ops.AnswerInput{
				Answerer:        w.Pubkey(),
				PrayerID:        id,
				AnswerHash:      envelope.HashText(answer),
				EncryptedAnswer: sealed,
			})
			if err != nil {
				return outputError(err)
			}

			// Cache failures are not fatal; the chain op already succeeded.
			_ = pcache.PutAnswer(c.Context, id, answer)

			return outputJSON(output)
		},
	}
}

// confirmCmd creates the confirm command.
func confirmCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Confirm a fulfilled prayer and split the bounty",
		ArgsUsage: "<prayer-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "claimers", Usage: "Comma-separated claimer wallets (defaults to all live claims)"},
		},
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			claimers, err := parseClaimerList(c.String("claimers"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if len(claimers) == 0 {
				claimers, err = envelope.LiveClaimers(c.Context, store, id)
				if err != nil {
					return outputError(err)
				}
			}

			output, err := ops.Confirm(c.Context, store, ops.ConfirmInput{
				Requester: w.Pubkey(),
				PrayerID:  id,
				Claimers:  claimers,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// cancelCmd creates the cancel command.
func cancelCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel an open prayer and refund the bounty",
		ArgsUsage: "<prayer-id>",
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Cancel(c.Context, store, ops.CancelInput{
				Requester: w.Pubkey(),
				PrayerID:  id,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// unclaimCmd creates the unclaim command.
func unclaimCmd(store ledger.Store, cfg *config.Config, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "unclaim",
		Usage:     "Remove a claim and return its deposit",
		ArgsUsage: "<prayer-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "claimer", Usage: "Claim to remove (hex, defaults to the local wallet)"},
		},
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			claimer, err := localOrParse(w, c.String("claimer"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			output, err := ops.Unclaim(c.Context, store, cfg, ops.UnclaimInput{
				Caller:   w.Pubkey(),
				PrayerID: id,
				Claimer:  claimer,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// closeCmd creates the close command. Surviving claims are swept from the
// live set so their deposits go home.
func closeCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "close",
		Usage:     "Close a confirmed or cancelled prayer and sweep deposits",
		ArgsUsage: "<prayer-id>",
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			claimers, err := envelope.LiveClaimers(c.Context, store, id)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Close(c.Context, store, ops.CloseInput{
				Requester: w.Pubkey(),
				PrayerID:  id,
				Claimers:  claimers,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(store ledger.Store) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a prayer's chain state (hashes and sealed payloads)",
		ArgsUsage: "<prayer-id>",
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Show(c.Context, store, ops.ShowInput{PrayerID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// readOutput is the read command's output shape.
type readOutput struct {
	PrayerID uint64 `json:"prayer_id"`
	Content  string `json:"content,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// readCmd creates the read command.
func readCmd(store ledger.Store, w *wallet.Wallet, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Decrypt a prayer's plaintext addressed to the local wallet",
		ArgsUsage: "<prayer-id>",
		Action: func(c *cli.Context) error {
			id, err := prayerIDArg(c)
			if err != nil {
				return outputError(err)
			}
			shown, err := ops.Show(c.Context, store, ops.ShowInput{PrayerID: id})
			if err != nil {
				return outputError(err)
			}
			content, answer := envelope.Reveal(c.Context, store, w, pcache, shown)
			return outputJSON(readOutput{
				PrayerID: id,
				Content:  content,
				Answer:   answer,
			})
		},
	}
}

// boardCmd creates the board command.
func boardCmd(store ledger.Store) *cli.Command {
	return &cli.Command{
		Name:  "board",
		Usage: "List prayers on the board, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter by status: open|active|fulfilled|confirmed|cancelled"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by prayer type"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultBoardLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Board(c.Context, store, ops.BoardInput{
				Status: prayer.Status(c.String("status")),
				Type:   prayer.PrayerType(c.String("type")),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// agentCmd creates the agent command.
func agentCmd(store ledger.Store, w *wallet.Wallet) *cli.Command {
	return &cli.Command{
		Name:      "agent",
		Usage:     "Show an agent profile (defaults to the local wallet)",
		ArgsUsage: "[wallet]",
		Action: func(c *cli.Context) error {
			target := w.Pubkey()
			if c.NArg() > 0 {
				var err error
				target, err = prayer.ParsePubkey(c.Args().First())
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}
			output, err := ops.Agent(c.Context, store, ops.AgentInput{Wallet: target})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(store ledger.Store) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show chain state and ledger totals",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, store)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// eventsCmd creates the events command.
func eventsCmd(store ledger.Store) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Page through the journal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by event kind"},
			&cli.Uint64Flag{Name: "prayer", Aliases: []string{"p"}, Usage: "Filter by prayer id"},
			&cli.BoolFlag{Name: "asc", Usage: "Oldest first (timeline order)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultEventLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			input := ops.EventsInput{
				Kind:      c.String("kind"),
				Ascending: c.Bool("asc"),
				Limit:     c.Int("limit"),
				Offset:    c.Int("offset"),
			}
			if c.IsSet("prayer") {
				id := c.Uint64("prayer")
				input.PrayerID = &id
			}
			output, err := ops.Events(c.Context, store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// cachePurgeOutput is the cache-purge command's output shape.
type cachePurgeOutput struct {
	Purged int64 `json:"purged"`
}

// cachePurgeCmd creates the cache-purge command.
func cachePurgeCmd(pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "cache-purge",
		Usage: "Drop all locally cached plaintext",
		Action: func(c *cli.Context) error {
			n, err := pcache.Purge(c.Context)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(cachePurgeOutput{Purged: n})
		},
	}
}

// webCmd creates the web command.
func webCmd(store ledger.Store, cfg *config.Config, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the read-only web board",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: cfg.WebBind, Usage: "Interface to listen on"},
			&cli.IntFlag{Name: "port", Value: cfg.WebPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(store, cfg, pcache, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// serveCmd creates the serve command, the explicit form of the default MCP
// stdio mode.
func serveCmd(store ledger.Store, cfg *config.Config, w *wallet.Wallet, pcache *cache.Cache) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(store, cfg, w, pcache, Version)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var chorusErr *errors.ChorusError
	if stderrors.As(err, &chorusErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", chorusErr.Code, chorusErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// prayerIDArg parses the positional prayer id argument.
func prayerIDArg(c *cli.Context) (uint64, error) {
	if c.NArg() < 1 {
		return 0, errors.NewInvalidRequest("prayer id argument is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid prayer id %q", c.Args().First()))
	}
	return id, nil
}

// localOrParse resolves an optional hex wallet argument, defaulting to the
// local wallet.
func localOrParse(w *wallet.Wallet, s string) (prayer.Pubkey, error) {
	if s == "" {
		return w.Pubkey(), nil
	}
	return prayer.ParsePubkey(s)
}

// parseClaimerList decodes a comma-separated list of hex wallet keys.
func parseClaimerList(s string) ([]prayer.Pubkey, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	keys := make([]prayer.Pubkey, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, err := prayer.ParsePubkey(p)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// contentFromFlagOrStdin reads text from the named flag, falling back to
// piped stdin.
func contentFromFlagOrStdin(c *cli.Context, flag string) (string, error) {
	if s := c.String(flag); s != "" {
		return s, nil
	}
	if stdinHasData() {
		return readStdin(maxStdinBytes)
	}
	return "", nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
