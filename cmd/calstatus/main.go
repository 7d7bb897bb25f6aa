package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"calstatus/internal/config"
	"calstatus/internal/event"
	"calstatus/internal/ics"
	appLog "calstatus/internal/log"
	"calstatus/internal/presence"
	"calstatus/internal/runner"
	"calstatus/internal/status"
	"calstatus/internal/token"
	"calstatus/internal/web"
)

var version = "dev"

// rootFlags holds persistent CLI flag values.
type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "calstatus",
		Short:         "Set Slack status from the event currently on your calendar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "settings file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, error (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: console or json (overrides settings)")

	rootCmd.AddCommand(
		newRunCmd(&flags),
		newServeCmd(&flags),
		newPreviewCmd(&flags),
		newTokenCmd(&flags),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs after settings are loaded.
type app struct {
	settings *config.Settings
	loc      *time.Location
	logger   *appLog.Logger
	runner   *runner.Runner
}

func setup(flags *rootFlags) (*app, error) {
	settings, err := config.LoadSettings(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if flags.logLevel != "" {
		settings.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		settings.Log.Format = flags.logFormat
	}

	logger := appLog.New(os.Stderr, appLog.ParseLevel(settings.Log.Level), settings.Log.Format != "json")

	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}
	workStart, workEnd := settings.WorkHours()

	resolver := status.NewResolver(status.Config{
		Location:  loc,
		WorkStart: workStart,
		WorkEnd:   workEnd,
		PickEmoji: status.RandomPicker(status.DefaultPalette),
	})
	r := runner.New(
		ics.NewFetcher(settings.CacheDir, settings.FetchTimeout, logger),
		presence.NewSlack(),
		event.NewBuilder(loc, logger),
		resolver,
		time.Now,
		logger,
	)

	logger.Debug("effective settings",
		"timezone", settings.Timezone,
		"work_start", settings.WorkStart,
		"work_end", settings.WorkEnd,
		"identities_dir", settings.IdentitiesDir,
		"cache_dir", settings.CacheDir,
		"schedule", settings.Schedule,
	)

	return &app{settings: settings, loc: loc, logger: logger, runner: r}, nil
}

func (a *app) loadIdentities(only string) ([]config.Identity, error) {
	ids, err := config.LoadIdentities(a.settings.IdentitiesDir)
	if err != nil {
		return nil, err
	}
	if only == "" {
		return ids, nil
	}
	id, ok := config.FindIdentity(ids, only)
	if !ok {
		return nil, fmt.Errorf("identity %q not found in %s", only, a.settings.IdentitiesDir)
	}
	return []config.Identity{id}, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		dryRun   bool
		identity string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve and set the status for every identity once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			ids, err := a.loadIdentities(identity)
			if err != nil {
				return err
			}
			a.runner.DryRun = dryRun

			ctx, cancel := signalContext()
			defer cancel()

			rep, err := a.runner.RunBatch(ctx, ids)
			if err != nil {
				return err
			}
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d identities failed", len(failed), len(rep.Outcomes))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve statuses without updating Slack")
	cmd.Flags().StringVar(&identity, "identity", "", "process only this identity")
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var noHTTP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Update statuses on the configured schedule and serve the preview API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			job := func(ctx context.Context) {
				ids, err := a.loadIdentities("")
				if err != nil {
					a.logger.Error("load identities failed", err, "dir", a.settings.IdentitiesDir)
					return
				}
				if _, err := a.runner.RunBatch(ctx, ids); err != nil {
					a.logger.Error("batch failed", err)
				}
			}

			errCh := make(chan error, 2)
			go func() {
				errCh <- runner.Schedule(ctx, a.settings.Schedule, a.loc, job, a.logger)
			}()
			if !noHTTP {
				srv := web.NewServer(a.runner, func() ([]config.Identity, error) {
					return a.loadIdentities("")
				}, a.settings.BasicAuth, a.logger)
				go func() {
					errCh <- srv.ListenAndServe(ctx, a.settings.Listen)
				}()
			}

			a.logger.Info("calstatus serving", "version", version)
			select {
			case err := <-errCh:
				cancel()
				return err
			case <-ctx.Done():
			}

			// Drain whatever finishes during shutdown.
			shutdown := time.After(10 * time.Second)
			pending := 1
			if !noHTTP {
				pending = 2
			}
			for pending > 0 {
				select {
				case err := <-errCh:
					pending--
					if err != nil {
						a.logger.Error("shutdown error", err)
					}
				case <-shutdown:
					return errors.New("timed out waiting for shutdown")
				}
			}
			a.logger.Info("calstatus exiting")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "disable the preview HTTP server")
	return cmd
}

func newPreviewCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <identity>",
		Short: "Print the status an identity would get right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			ids, err := a.loadIdentities(args[0])
			if err != nil {
				return err
			}
			payload, err := a.runner.Resolve(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Collect a Slack user token for an identity via OAuth",
	}

	urlCmd := &cobra.Command{
		Use:   "url",
		Short: "Print the Slack authorize URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			c, err := token.NewCollector(a.settings.Slack.ClientID, a.settings.Slack.ClientSecret, a.settings.Slack.RedirectURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.AuthURL(uuid.NewString()))
			return nil
		},
	}

	var identity, calendarURL, code string
	exchangeCmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code and write the identity record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			c, err := token.NewCollector(a.settings.Slack.ClientID, a.settings.Slack.ClientSecret, a.settings.Slack.RedirectURL)
			if err != nil {
				return err
			}
			userToken, err := c.Exchange(cmd.Context(), code)
			if err != nil {
				return err
			}
			path := filepath.Join(a.settings.IdentitiesDir, identity+".yaml")
			rec := config.Identity{Identity: identity, CalendarURL: calendarURL, Token: userToken}
			if err := config.SaveIdentity(path, rec); err != nil {
				return fmt.Errorf("save identity: %w", err)
			}
			a.logger.Info("identity saved", "identity", identity, "path", path, "calendar", ics.RedactURL(calendarURL))
			return nil
		},
	}
	exchangeCmd.Flags().StringVar(&identity, "identity", "", "identity name (file stem)")
	exchangeCmd.Flags().StringVar(&calendarURL, "calendar-url", "", "ICS feed URL for this identity")
	exchangeCmd.Flags().StringVar(&code, "code", "", "authorization code from the OAuth redirect")
	_ = exchangeCmd.MarkFlagRequired("identity")
	_ = exchangeCmd.MarkFlagRequired("calendar-url")
	_ = exchangeCmd.MarkFlagRequired("code")

	cmd.AddCommand(urlCmd, exchangeCmd)
	return cmd
}
