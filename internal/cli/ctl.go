package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"timetracker/internal/config"
	"timetracker/internal/core"
	"timetracker/internal/export"
	"timetracker/internal/log"
	"timetracker/internal/store"
	"timetracker/internal/tables"
)

type (
	EntryFetcher interface {
		Fetch(ctx context.Context) store.ListResult[core.FlatTimeEntry]
	}

	CategoryLister interface {
		List(ctx context.Context) []core.Category
	}
)

// Env is the data a trackerctl command works on.
type Env struct {
	Entries    EntryFetcher
	Categories CategoryLister
	// Identity, when set, is attached to every request context.
	Identity *tables.Identity
	Now      func() time.Time
}

// Credentials are the optional sign-in flags.
type Credentials struct {
	Email    string
	Password string
}

// Opener prepares an Env. The returned func releases whatever it opened.
type Opener func(ctx context.Context, creds Credentials) (*Env, func(), error)

var errNeedCredentials = errors.New("the rest backend needs --email and --password")

// NewOpener opens the configured backend, signing in first when
// credentials are given.
func NewOpener(cfg *config.Config, logger *log.Logger) Opener {
	return func(ctx context.Context, creds Credentials) (*Env, func(), error) {
		if cfg.DataBackend == "rest" && (creds.Email == "" || creds.Password == "") {
			return nil, nil, errNeedCredentials
		}
		result, err := OpenBackend(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if result.Cleanup != nil {
				if err := result.Cleanup(); err != nil {
					logger.Warn("Closing backend failed", log.FieldError, err)
				}
			}
		}

		entries, categories := NewStores(cfg, result.Client, logger)
		env := &Env{Entries: entries, Categories: categories, Now: time.Now}

		if creds.Email != "" {
			provider, err := NewAuthProvider(cfg)
			if err != nil {
				release()
				return nil, nil, err
			}
			id, err := provider.SignIn(ctx, strings.ToLower(creds.Email), creds.Password)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("sign in: %w", err)
			}
			env.Identity = &id
		}
		return env, release, nil
	}
}

// NewRootCommand builds the trackerctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	var creds Credentials

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Inspect and export tracked time from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&creds.Email, "email", os.Getenv("TRACKER_EMAIL"), "Sign in as this user")
	root.PersistentFlags().StringVar(&creds.Password, "password", os.Getenv("TRACKER_PASSWORD"), "Password for --email")

	run := func(fn func(ctx context.Context, cmd *cobra.Command, env *Env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			env, release, err := open(ctx, creds)
			if err != nil {
				return err
			}
			if release != nil {
				defer release()
			}
			if env.Now == nil {
				env.Now = time.Now
			}
			if env.Identity != nil {
				ctx = tables.WithIdentity(ctx, *env.Identity)
			}
			return fn(ctx, cmd, env)
		}
	}

	root.AddCommand(newEntriesCommand(run), newExportCommand(run), newCategoriesCommand(run))
	return root
}

type runner func(fn func(ctx context.Context, cmd *cobra.Command, env *Env) error) func(*cobra.Command, []string) error

func newEntriesCommand(run runner) *cobra.Command {
	entries := &cobra.Command{
		Use:   "entries",
		Short: "Work with time entries",
	}

	var month string
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest day first",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, env *Env) error {
			if month != "" {
				if _, err := time.Parse("2006-01", month); err != nil {
					return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
				}
			}
			idx, err := fetchIndex(ctx, env)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), idx, env.Categories.List(ctx), month)
		}),
	}
	list.Flags().StringVar(&month, "month", "", "Only show entries of this month (YYYY-MM)")
	entries.AddCommand(list)
	return entries
}

func newExportCommand(run runner) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entry as CSV",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, env *Env) error {
			idx, err := fetchIndex(ctx, env)
			if err != nil {
				return err
			}
			cats := env.Categories.List(ctx)

			if output == "" {
				if err := export.Write(cmd.OutOrStdout(), idx, cats); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout())
				return err
			}
			if output == "." || strings.HasSuffix(output, string(os.PathSeparator)) {
				output = strings.TrimSuffix(output, string(os.PathSeparator)) + string(os.PathSeparator) + export.FileName(env.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.Write(f, idx, cats); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", output, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d entries to %s\n", idx.Len(), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file, or into this directory when it ends in a separator")
	return cmd
}

func newCategoriesCommand(run runner) *cobra.Command {
	categories := &cobra.Command{
		Use:   "categories",
		Short: "Work with categories",
	}
	categories.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, env *Env) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
			for _, c := range env.Categories.List(ctx) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Color)
			}
			return tw.Flush()
		}),
	})
	return categories
}

// fetchIndex reads every entry. Unlike the web UI, a failed read is an error
// here rather than an empty list.
func fetchIndex(ctx context.Context, env *Env) (*core.Entries, error) {
	res := env.Entries.Fetch(ctx)
	if res.Failed() {
		return nil, fmt.Errorf("list entries: %w", res.Err)
	}
	return core.BuildIndex(res.Items), nil
}

func printEntries(w io.Writer, idx *core.Entries, cats []core.Category, month string) error {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tID\tCATEGORY\tDURATION\tDESCRIPTION")
	dates := idx.Dates()
	slices.Sort(dates)
	slices.Reverse(dates)

	total, count := 0, 0
	for _, date := range dates {
		if month != "" && !strings.HasPrefix(date, month) {
			continue
		}
		for _, te := range idx.Day(date) {
			cat := names[te.CategoryID]
			if cat == "" {
				cat = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, te.ID, cat, core.FormatDuration(te.DurationMinutes), te.Description)
			total += te.DurationMinutes
			count++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d entries, %s (%s h)\n", count, core.FormatDuration(total), core.FormatHours(total, 2))
	return err
}
