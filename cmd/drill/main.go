// cmd/drill/main.go

// Command drill races many readers for the last copy of a fresh title on a
// running API and exits non-zero when the counters and loans disagree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"librarydesk/internal/client"
	"librarydesk/internal/drill"
	"librarydesk/internal/logging"
	"librarydesk/internal/telemetry"
)

var errViolated = errors.New("drill found invariant violations")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "drill: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		apiURL, username, logLevel, otlp string
		readers                          int
	)
	cmd := &cobra.Command{
		Use:           "drill",
		Short:         "Race concurrent borrows for a single copy against a live API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := logging.New(logLevel, "json", cmd.ErrOrStderr())

			shutdown, err := telemetry.Setup(ctx, "librarydesk-drill", otlp)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()

			d := drill.New(client.New(apiURL, nil), drill.Options{
				Librarian:         username,
				LibrarianPassword: os.Getenv("LIBRARYDESK_PASSWORD"),
				Readers:           readers,
				Logger:            logger,
			})
			res, err := d.LastCopy(ctx)
			if err != nil {
				return err
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Held() {
				return errViolated
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVarP(&username, "username", "u", os.Getenv("LIBRARYDESK_USERNAME"),
		"librarian account (password from LIBRARYDESK_PASSWORD)")
	cmd.Flags().IntVar(&readers, "readers", 8, "concurrent readers")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	cmd.Flags().StringVar(&otlp, "otlp-endpoint", os.Getenv("LIBRARYDESK_OTLP_ENDPOINT"), "OTLP/HTTP trace endpoint")
	return cmd
}
