package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/pointledger/internal/adapter/http/dto"
	"github.com/iho/pointledger/internal/infrastructure/postgres"
)

type options struct {
	baseURL string
	timeout time.Duration
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pointledger-cli",
		Short: "PointLedger CLI tool",
		Long: `A command line interface for the PointLedger API and database migrations.

Idempotency keys: the server runs with IDEMPOTENCY_MODE=enforce unless configured
otherwise. Reusing a key for a different operation fails with idempotency_conflict
(409). Set IDEMPOTENCY_MODE=store on the server to only record keys without checking them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("POINTLEDGER_URL", "http://localhost:8080"), "Base URL of the PointLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")

	rootCmd.AddCommand(
		entryCmd(opts, "earn", "Credit points to a user", "/api/v1/earn"),
		entryCmd(opts, "spend", "Debit points from a user", "/api/v1/spend"),
		transferCmd(opts),
		reverseCmd(opts),
		balanceCmd(opts),
		historyCmd(opts),
		dailyCmd(opts),
		getEntryCmd(opts),
		ledgerCmd(opts),
		migrateCmd(),
	)

	return rootCmd
}

func entryCmd(opts *options, name, short, path string) *cobra.Command {
	var reason, key string

	cmd := &cobra.Command{
		Use:   name + " <user> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			var resp dto.EntryResultResponse
			req := dto.EntryRequest{UserID: args[0], Amount: amount, Reason: reason, IdempotencyKey: key}
			if err := newClient(opts).post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				printEntries(w, []*dto.EntryResponse{resp.Entry})
				printReplay(w, resp.Replayed)
			})
		},
	}

	addWriteFlags(cmd, &reason, &key)
	return cmd
}

func transferCmd(opts *options) *cobra.Command {
	var reason, key string

	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move points between users",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			var resp dto.TransferResponse
			req := dto.TransferRequest{FromUser: args[0], ToUser: args[1], Amount: amount, Reason: reason, IdempotencyKey: key}
			if err := newClient(opts).post(cmd.Context(), "/api/v1/transfer", req, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				fmt.Fprintf(w, "Group: %s\n", resp.GroupID)
				printEntries(w, []*dto.EntryResponse{resp.Out, resp.In})
				printReplay(w, resp.Replayed)
			})
		},
	}

	addWriteFlags(cmd, &reason, &key)
	return cmd
}

func reverseCmd(opts *options) *cobra.Command {
	var reason, key string

	cmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Reverse a spend or transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var resp dto.ReversalResponse
			req := dto.ReversalRequest{OriginalTxID: id, Reason: reason, IdempotencyKey: key}
			if err := newClient(opts).post(cmd.Context(), "/api/v1/reversal", req, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				fmt.Fprintf(w, "Reversed entry %d\n", resp.Reversed)
				printEntries(w, resp.Entries)
				printReplay(w, resp.Replayed)
			})
		},
	}

	addWriteFlags(cmd, &reason, &key)
	return cmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user>",
		Short: "Show a user's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.BalanceResponse
			if err := newClient(opts).get(cmd.Context(), "/api/v1/users/"+args[0]+"/balance", nil, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %d\n", resp.UserID, resp.Balance)
			})
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "List a user's entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{
				"limit":  strconv.Itoa(limit),
				"offset": strconv.Itoa(offset),
			}

			var resp []*dto.EntryResponse
			if err := newClient(opts).get(cmd.Context(), "/api/v1/users/"+args[0]+"/entries", query, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				printEntries(w, resp)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")
	return cmd
}

func dailyCmd(opts *options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "daily <user> <kind>",
		Short: "Show a user's daily total and remaining limit for a kind",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query map[string]string
			if date != "" {
				query = map[string]string{"date": date}
			}

			var resp dto.DailyTotalResponse
			if err := newClient(opts).get(cmd.Context(), "/api/v1/users/"+args[0]+"/daily/"+args[1], query, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s on %s: %d of %d (%d remaining)\n",
					resp.UserID, resp.Kind, resp.Date, resp.Total, resp.Limit, resp.Remaining)
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Calendar day as YYYY-MM-DD (default today)")
	return cmd
}

func getEntryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "entry <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var resp dto.EntryResponse
			if err := newClient(opts).get(cmd.Context(), "/api/v1/entries/"+strconv.FormatInt(id, 10), nil, &resp); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				printEntries(w, []*dto.EntryResponse{&resp})
			})
		},
	}
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger-wide operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check that transfer legs balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp dto.ConsistencyResponse
			err := newClient(opts).get(cmd.Context(), "/api/v1/ledger/consistency", nil, &resp)

			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				if jsonErr := json.Unmarshal(apiErr.Body, &resp); jsonErr != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			if rerr := render(cmd.OutOrStdout(), opts, resp, func(w io.Writer) {
				result := "PASSED"
				if !resp.Consistent {
					result = "FAILED"
				}
				fmt.Fprintf(w, "Consistency check %s\n", result)
				fmt.Fprintf(w, "transfer_out=%d transfer_in=%d unpaired_groups=%d\n",
					resp.TransferOut, resp.TransferIn, resp.UnpairedGroups)
			}); rerr != nil {
				return rerr
			}

			if !resp.Consistent {
				return errors.New("ledger is inconsistent")
			}
			return nil
		},
	})

	return cmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&path, "path", "migrations", "Migrations directory")

	requireURL := func() error {
		if databaseURL == "" {
			return fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	run := func(fn func(string, string) error, done string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			if err := fn(databaseURL, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrations, "migrations applied")},
		&cobra.Command{Use: "down", Short: "Roll back the most recent migration", Args: cobra.NoArgs, RunE: run(postgres.RunMigrationsDown, "migration rolled back")},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireURL(); err != nil {
					return err
				}
				version, dirty, err := postgres.MigrationVersion(databaseURL, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d", version)
				if dirty {
					fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			},
		},
	)

	return cmd
}

func addWriteFlags(cmd *cobra.Command, reason, key *string) {
	cmd.Flags().StringVar(reason, "reason", "", "Free-form reason recorded on the entry")
	cmd.Flags().StringVar(key, "idempotency-key", "", "Idempotency key; retries with the same key replay the first result, a different request with it gets 409 under the default enforce mode")
}

func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("amount must be a positive integer, got %q", raw)
	}
	return amount, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("entry id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func render(w io.Writer, opts *options, v any, text func(io.Writer)) error {
	if opts.output == "json" {
		return printJSON(w, v)
	}
	text(w)
	return nil
}

func printEntries(w io.Writer, entries []*dto.EntryResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tKIND\tAMOUNT\tGROUP\tREASON")
	for _, e := range entries {
		if e == nil {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", e.ID, e.UserID, e.Kind, e.Amount, truncate(e.GroupID, 12), truncate(e.Reason, 32))
	}
	_ = tw.Flush()
}

func printReplay(w io.Writer, replayed bool) {
	if replayed {
		fmt.Fprintln(w, "(replayed from an earlier request with the same idempotency key)")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
