// SPDX-License-Identifier: AGPL-3.0-or-later

/*
leafsync - keeps a git repository in step with an Overleaf read-only project.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bartekus/leafsync/cmd/leafsync/internal/clierr"
	"github.com/bartekus/leafsync/internal/config"
	"github.com/bartekus/leafsync/internal/fetcher"
	"github.com/bartekus/leafsync/internal/logger"
	"github.com/bartekus/leafsync/internal/message"
	"github.com/bartekus/leafsync/internal/repo"
	"github.com/bartekus/leafsync/internal/syncer"
)

// NewSyncCommand returns the `leafsync sync` command.
func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download the Overleaf project and commit any change",
		Long: `Exports the Overleaf read-only project as a zip archive, extracts it over the
git working tree and, when the diff is not empty, commits with a generated
message and pushes. Exits 0 when there is nothing to commit.`,
		RunE: runSync,
	}

	// Flags in alphabetical order for deterministic help output
	cmd.Flags().String("api-key", "", "API key for the chat endpoint (default $API_KEY)")
	cmd.Flags().String("git-path", "", "git working tree to update (default $GIT_REPO_PATH)")
	cmd.Flags().Bool("headful", false, "show the browser window instead of running headless")
	cmd.Flags().String("log-level", "", "log level: "+strings.Join(config.LogLevels, ", ")+" (default $LOG_LEVEL or INFO)")
	cmd.Flags().String("logs-dir", "", "directory for hourly log files (default $LOGS_FOLDER or /tmp/overleaf_logs)")
	cmd.Flags().String("model", "", "model requested from the chat endpoint (default $OPENWEBUI_MODEL or "+message.DefaultModel+")")
	cmd.Flags().String("openwebui-url", "", "base URL of the chat endpoint (default $OPENWEBUI_URL)")
	cmd.Flags().String("overleaf-url", "", "Overleaf read-only project URL (default $OVERLEAF_URL)")
	cmd.Flags().String("profile-dir", "", "browser profile holding the Overleaf session (default $BROWSER_PROFILE_DIR)")
	cmd.Flags().String("tmp-dir", "", "download directory for the project archive (default $TMP_ZIP_FOLDER or /tmp/)")

	return cmd
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	strs := map[string]*string{
		"api-key":       &cfg.Model.APIKey,
		"git-path":      &cfg.Repo.Path,
		"log-level":     &cfg.Log.Level,
		"logs-dir":      &cfg.Log.Dir,
		"model":         &cfg.Model.Name,
		"openwebui-url": &cfg.Model.URL,
		"overleaf-url":  &cfg.Overleaf.URL,
		"profile-dir":   &cfg.Browser.ProfileDir,
		"tmp-dir":       &cfg.Browser.DownloadDir,
	}
	for name, dst := range strs {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	if cmd.Flags().Changed("headful") {
		headful, _ := cmd.Flags().GetBool("headful")
		cfg.Browser.Headless = !headful
	}
	return cfg.Validate()
}

// runSync executes the sync command.
func runSync(cmd *cobra.Command, args []string) error {
	// 1. Resolve configuration
	cfg, err := loadConfig(cmd)
	if err != nil {
		return clierr.Failure("loading config", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return clierr.Failure("invalid flags", err)
	}

	// 2. Logging
	verbose, _ := cmd.Flags().GetBool("verbose")
	logOpts := logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, Format: cfg.Log.Format}
	if verbose {
		logOpts.Console = cmd.ErrOrStderr()
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return clierr.Failure("setting up logging", err)
	}
	defer func() { _ = log.Close() }()

	// 3. Collaborators
	gen, err := message.NewClient(cfg.Model.URL, cfg.Model.APIKey, cfg.Model.Prompt, log.Component("message"),
		message.WithModel(cfg.Model.Name))
	if err != nil {
		return clierr.Failure("configuring message generator", err)
	}

	chrome := fetcher.NewChrome(fetcher.Options{
		DownloadDir:    cfg.Browser.DownloadDir,
		ProfileDir:     cfg.Browser.ProfileDir,
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		ElementTimeout: cfg.Browser.ElementTimeout,
		Wait: fetcher.WaitOptions{
			Settle:   cfg.Browser.SettleDelay,
			Interval: cfg.Browser.PollInterval,
			Timeout:  cfg.Browser.DownloadTimeout,
		},
	}, log.Component("fetcher"))

	treeLog := log.Component("repo")
	s := syncer.New(syncer.Options{ProjectURL: cfg.Overleaf.URL, TreePath: cfg.Repo.Path}, syncer.Deps{
		Fetcher:   chrome,
		Generator: gen,
		OpenTree: func(path string) (syncer.Tree, error) {
			tree, err := repo.Open(path, repo.NewExecExecutor(), treeLog)
			if err != nil {
				return nil, err
			}
			return tree, nil
		},
	}, log.Component("syncer"))

	// 4. Run
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := s.Run(ctx)
	if err != nil {
		return clierr.Failure("sync failed", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leafsync: %s\n", report.Outcome)
	return nil
}
