// cmd/desk/main.go

// Command desk is the terminal front end for librarians and readers. It
// talks to the store directly through the same services as the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"librarydesk/internal/app"
	"librarydesk/internal/config"
	"librarydesk/internal/logging"
)

func main() {
	d := &desk{password: readPassword, now: time.Now}
	if err := d.execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type desk struct {
	app      *app.App
	username string
	password func(prompt string) (string, error)
	now      func() time.Time
}

// execute runs one command line and always releases the store, including
// when the command fails and cobra skips the post-run hooks.
func (d *desk) execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := d.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if d.app != nil {
		if cerr := d.app.Close(); err == nil {
			err = cerr
		}
		d.app = nil
	}
	return err
}

func (d *desk) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "desk",
		Short:         "Library circulation desk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			d.app, err = app.Open(cmd.Context(), cfg, logger)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&d.username, "username", "u", os.Getenv("LIBRARYDESK_USERNAME"),
		"account to act as (password from LIBRARYDESK_PASSWORD or prompt)")

	root.AddCommand(
		d.migrateCmd(),
		d.registerCmd(),
		d.addTitleCmd(),
		d.restockCmd(),
		d.titlesCmd(),
		d.borrowCmd(),
		d.returnCmd(),
		d.loansCmd(),
		d.overdueCmd(),
		d.auditCmd(),
	)
	return root
}

func (d *desk) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// PersistentPreRunE already migrated.
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
