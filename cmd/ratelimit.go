package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/caleslawncare/quote-gateway/internal/db"
	"github.com/caleslawncare/quote-gateway/internal/ratelimit"
)

var (
	rateLimitListOutput string
	rateLimitResetKey   string
	rateLimitResetAll   bool
	rateLimitResetYes   bool
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect and clear shared rate limit state (redis backend)",
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with an open rate limit window",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(rateLimitListOutput))
		if format != "table" && format != "json" {
			return fmt.Errorf("unsupported output format: %s", rateLimitListOutput)
		}

		insp, closeFn, err := openInspector(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := insp.Entries(cmd.Context())
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

		if format == "json" {
			payload, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		}

		renderEntries(cmd.OutOrStdout(), entries, time.Now())
		return nil
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the rate limit window of one client, or of all clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.TrimSpace(rateLimitResetKey)
		if key == "" && !rateLimitResetAll {
			return fmt.Errorf("provide --client or --all")
		}
		if key != "" && rateLimitResetAll {
			return fmt.Errorf("--client and --all are mutually exclusive")
		}
		if rateLimitResetAll && !rateLimitResetYes {
			return fmt.Errorf("refusing to reset all clients without --yes")
		}

		insp, closeFn, err := openInspector(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		keys := []string{key}
		if rateLimitResetAll {
			entries, err := insp.Entries(cmd.Context())
			if err != nil {
				return err
			}
			keys = keys[:0]
			for _, e := range entries {
				keys = append(keys, e.Key)
			}
		}

		cleared := 0
		for _, k := range keys {
			ok, err := insp.Reset(cmd.Context(), k)
			if err != nil {
				return fmt.Errorf("reset %s: %w", k, err)
			}
			if ok {
				cleared++
			}
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d rate limit window(s)\n", cleared)
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", "table", "Output format: table|json")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKey, "client", "", "Client key (forwarded IP) to clear")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Clear every client")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm --all")

	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
}

// openInspector connects to redis. The memory backend lives inside the serve
// process and cannot be inspected from here.
func openInspector(ctx context.Context) (ratelimit.Inspector, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.RateLimit.Backend != "redis" {
		return nil, nil, fmt.Errorf("rate_limit.backend is %q; ratelimit commands need the redis backend", cfg.RateLimit.Backend)
	}

	rdb, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}

	store := ratelimit.NewRedisStore(rdb, ratelimit.Options{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
		KeyPrefix:   cfg.RateLimit.KeyPrefix,
	})
	return store, func() { _ = rdb.Close() }, nil
}

func renderEntries(w io.Writer, entries []ratelimit.Entry, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Client", "Count", "Resets At", "Resets In"})

	for _, e := range entries {
		left := e.ResetAt.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		t.AppendRow(table.Row{e.Key, e.Count, e.ResetAt.UTC().Format(time.RFC3339), left.String()})
	}

	if len(entries) == 0 {
		t.AppendRow(table.Row{"(no open windows)", "", "", ""})
	}
	t.AppendFooter(table.Row{"", "", "clients", len(entries)})
	t.Render()
}
