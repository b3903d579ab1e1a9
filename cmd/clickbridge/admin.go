package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/clickbridge/internal/adapter/postgres"
	"github.com/Strob0t/clickbridge/internal/config"
	"github.com/Strob0t/clickbridge/internal/domain"
	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

var adminJSON bool

func newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands against the clickbridge database",
		Example: `  clickbridge admin add-subscriber block-42 taskCreated
  clickbridge admin remove-subscriber block-42
  clickbridge admin list-subscribers --json
  clickbridge admin status
  clickbridge admin migrate status
  clickbridge admin migrate rollback --steps 1`,
	}
	admin.PersistentFlags().BoolVar(&adminJSON, "json", false, "print JSON even on a terminal")

	admin.AddCommand(
		&cobra.Command{
			Use:   "add-subscriber <block-id> <event-type>",
			Short: "Register a block for one webhook event type",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAdminDeps(cmd.Context(), func(d *adminDeps) error {
					return runAddSubscriber(cmd.Context(), d, cmd.OutOrStdout(), args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "remove-subscriber <block-id>",
			Short: "Unregister a block",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAdminDeps(cmd.Context(), func(d *adminDeps) error {
					return runRemoveSubscriber(cmd.Context(), d, cmd.OutOrStdout(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "list-subscribers",
			Short: "List registered blocks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAdminDeps(cmd.Context(), func(d *adminDeps) error {
					blocks, err := d.registry.List(cmd.Context(), d.installationID)
					if err != nil {
						return fmt.Errorf("list subscribers: %w", err)
					}
					return printSubscribers(cmd.OutOrStdout(), blocks, wantJSON(cmd.OutOrStdout()))
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the last sync outcome and which signals are set",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAdminDeps(cmd.Context(), func(d *adminDeps) error {
					return runStatus(cmd.Context(), d, cmd.OutOrStdout())
				})
			},
		},
		newMigrateCmd(),
	)
	return admin
}

func newMigrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the database schema",
	}

	var steps int
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("%w: --steps must be at least 1", domain.ErrValidation)
			}
			dsn, err := adminDSN()
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigrations(cmd.Context(), dsn, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
			return printSchemaVersion(cmd.Context(), cmd.OutOrStdout(), dsn)
		},
	}
	rollback.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				dsn, err := adminDSN()
				if err != nil {
					return err
				}
				if err := postgres.RunMigrations(cmd.Context(), dsn); err != nil {
					return err
				}
				return printSchemaVersion(cmd.Context(), cmd.OutOrStdout(), dsn)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				dsn, err := adminDSN()
				if err != nil {
					return err
				}
				return printSchemaVersion(cmd.Context(), cmd.OutOrStdout(), dsn)
			},
		},
		rollback,
	)
	return migrate
}

func adminDSN() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Postgres.DSN, nil
}

func printSchemaVersion(ctx context.Context, out io.Writer, dsn string) error {
	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	if wantJSON(out) {
		return json.NewEncoder(out).Encode(map[string]int64{"version": v})
	}
	fmt.Fprintf(out, "Schema version %d\n", v)
	return nil
}

type adminDeps struct {
	installationID string
	registry       subscriber.Registry
	store          *postgres.Store
}

func withAdminDeps(ctx context.Context, fn func(*adminDeps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	// The key is only needed to read sensitive signals; registry commands
	// work without one.
	key, _ := installation.DeriveKey(cfg.Security.EncryptionKey, cfg.Installation.ID)
	store := postgres.NewStore(pool, key)

	return fn(&adminDeps{
		installationID: cfg.Installation.ID,
		registry:       store.Subscribers(),
		store:          store,
	})
}

// newSubscriber validates operator input. Blocks may only subscribe to
// events the connector registers for.
func newSubscriber(blockID, eventType string, now time.Time) (subscriber.Block, error) {
	if blockID == "" {
		return subscriber.Block{}, fmt.Errorf("%w: block id is required", domain.ErrValidation)
	}
	if !webhook.IsSupported(eventType) {
		return subscriber.Block{}, fmt.Errorf("%w: unsupported event type %q", domain.ErrValidation, eventType)
	}
	return subscriber.Block{ID: blockID, EventType: eventType, CreatedAt: now.UTC()}, nil
}

func runAddSubscriber(ctx context.Context, d *adminDeps, out io.Writer, blockID, eventType string) error {
	b, err := newSubscriber(blockID, eventType, time.Now())
	if err != nil {
		return err
	}
	if err := d.registry.Add(ctx, d.installationID, b); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("block %s is already registered", blockID)
		}
		return fmt.Errorf("add subscriber: %w", err)
	}
	fmt.Fprintf(out, "Subscribed %s to %s\n", b.ID, b.EventType)
	return nil
}

func runRemoveSubscriber(ctx context.Context, d *adminDeps, out io.Writer, blockID string) error {
	if err := d.registry.Remove(ctx, d.installationID, blockID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("block %s is not registered", blockID)
		}
		return fmt.Errorf("remove subscriber: %w", err)
	}
	fmt.Fprintf(out, "Removed %s\n", blockID)
	return nil
}

func runStatus(ctx context.Context, d *adminDeps, out io.Writer) error {
	rec, err := d.store.Status(ctx, d.installationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("status: %w", err)
	}
	signals, err := d.store.Load(ctx, d.installationID)
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}
	prompts, err := d.store.List(ctx, d.installationID)
	if err != nil {
		return fmt.Errorf("list prompts: %w", err)
	}
	return printStatus(out, d.installationID, rec, signals, prompts, wantJSON(out))
}

// printStatus reports signal presence only; teamId is the one value shown.
func printStatus(out io.Writer, installationID string, rec installation.StatusRecord, signals installation.Signals, prompts []installation.Prompt, asJSON bool) error {
	set := make(map[string]bool, len(installation.AllSignals))
	for _, n := range installation.AllSignals {
		set[string(n)] = signals.Get(n) != ""
	}

	if prompts == nil {
		prompts = []installation.Prompt{}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"installationId": installationID,
			"status":         rec.Status,
			"description":    rec.Description,
			"teamId":         signals.TeamID,
			"signals":        set,
			"prompts":        prompts,
		})
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "INSTALLATION\t%s\n", installationID)
	fmt.Fprintf(tw, "STATUS\t%s\n", orDash(string(rec.Status)))
	fmt.Fprintf(tw, "DESCRIPTION\t%s\n", orDash(rec.Description))
	fmt.Fprintf(tw, "TEAM\t%s\n", orDash(signals.TeamID))
	for _, n := range installation.AllSignals {
		fmt.Fprintf(tw, "%s\t%v\n", n, set[string(n)])
	}
	for _, p := range prompts {
		fmt.Fprintf(tw, "PROMPT %s\t%s: %s %s\n", p.Key, p.Label, p.RedirectMethod, p.RedirectURL)
	}
	return tw.Flush()
}

func printSubscribers(out io.Writer, blocks []subscriber.Block, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	}
	if len(blocks) == 0 {
		fmt.Fprintln(out, "No subscribers registered.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tEVENT\tCREATED")
	for _, b := range blocks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.EventType, b.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// wantJSON picks JSON for pipes and --json, tables for terminals.
func wantJSON(out io.Writer) bool {
	if adminJSON {
		return true
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
