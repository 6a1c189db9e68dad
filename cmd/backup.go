package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/inovacc/gitvault/internal/application"
	"github.com/inovacc/gitvault/internal/core"
	"github.com/inovacc/gitvault/internal/git"
	"github.com/inovacc/gitvault/internal/notify"
	"github.com/inovacc/gitvault/internal/storage"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup [owner/name...]",
	Short: "Back up repositories as mirror archives",
	Long: `Backup captures a full mirror clone of each repository and packages it
as a compressed archive under the backup directory. The newest archive
is also kept under a stable "latest" name, and older archives beyond
the retention count are pruned.

Repositories come from positional owner/name arguments or from a
configuration file (--config). With a configuration file, the storage
section can additionally upload each archive to a remote sink (S3, GCS,
Azure, or a GitHub release).`,
	Example: `  gitvault backup octocat/hello-world
  gitvault backup myorg/api myorg/web --retention 14
  gitvault backup --config gitvault.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		backupDir, _ := cmd.Flags().GetString("backup-dir")
		retention, _ := cmd.Flags().GetInt("retention")
		flagToken, _ := cmd.Flags().GetString("token")

		if configPath == "" && len(args) == 0 {
			return fmt.Errorf("nothing to back up: pass owner/name arguments or --config")
		}

		token, source, err := core.ResolveToken(flagToken)
		if err != nil {
			return err
		}

		slog.Debug("resolved credential", slog.String("source", string(source)))

		gitClient, err := git.NewClient(token)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		// One identity round-trip before any clone traffic, so a bad token
		// fails fast instead of once per repository.
		login, err := core.VerifyCredential(ctx, core.NewGitHubClient(ctx, token))
		if err != nil {
			return err
		}

		slog.Debug("authenticated", slog.String("login", login))

		var (
			repos      []core.RepoRef
			sink       storage.Sink
			dispatcher *notify.Dispatcher
		)

		if configPath != "" {
			cfg, err := core.LoadConfig(configPath)
			if err != nil {
				return err
			}

			for _, fullName := range cfg.Repositories {
				owner, name, err := core.SplitFullName(fullName)
				if err != nil {
					return err
				}

				repos = append(repos, core.RepoRef{Owner: owner, Name: name})
			}

			if !cmd.Flags().Changed("retention") {
				retention = cfg.Retention.Count
			}

			sinkCfg, err := cfg.SinkConfig(token)
			if err != nil {
				return err
			}

			// A local storage section names the backup directory itself; only
			// remote storage types become an upload sink.
			if sinkCfg.Type == storage.SinkLocal {
				if !cmd.Flags().Changed("backup-dir") && sinkCfg.Dir != "" {
					backupDir = sinkCfg.Dir
				}
			} else {
				sink, err = storage.NewSink(ctx, sinkCfg)
				if err != nil {
					return err
				}
			}

			if cfg.Notifications.Enabled {
				dispatcher = notify.NewDispatcher(slog.Default())
				dispatcher.Register(notify.NewLogSender(slog.Default()))

				if cfg.Notifications.WebhookURL != "" {
					dispatcher.Register(notify.NewWebhookSender(cfg.Notifications.WebhookURL))
				}
			}
		}

		for _, arg := range args {
			owner, name, err := core.SplitFullName(arg)
			if err != nil {
				return err
			}

			repos = append(repos, core.RepoRef{Owner: owner, Name: name})
		}

		if backupDir == "" {
			backupDir, err = application.DefaultBackupDir()
			if err != nil {
				return err
			}
		}

		engine, err := core.NewEngine(gitClient, core.BackupOptions{
			BackupDir: backupDir,
			Retention: retention,
			Sink:      sink,
			Logger:    slog.Default(),
		})
		if err != nil {
			return err
		}

		result := engine.Run(ctx, repos)

		if dispatcher != nil {
			event := notify.NewEvent(notify.EventBackup).
				WithCounts(result.Succeeded, result.Failed)
			dispatcher.Dispatch(ctx, event)
		}

		printBackupSummary(result, backupDir)

		if result.Failed > 0 {
			return fmt.Errorf("%d of %d backups failed", result.Failed, result.Succeeded+result.Failed)
		}

		return nil
	},
}

func printBackupSummary(result *core.BackupResult, backupDir string) {
	_, _ = fmt.Fprintf(os.Stdout, "\nBackup complete: %d succeeded, %d failed, %d warnings\n",
		result.Succeeded, result.Failed, result.Warnings)

	for _, archivePath := range result.Archives {
		if info, err := os.Stat(archivePath); err == nil {
			_, _ = fmt.Fprintf(os.Stdout, "  %s (%s)\n", archivePath, formatBytes(info.Size()))
		} else {
			_, _ = fmt.Fprintf(os.Stdout, "  %s\n", archivePath)
		}
	}

	for _, failure := range result.Failures {
		_, _ = fmt.Fprintf(os.Stdout, "  FAILED %s: %v\n", failure.Repo.FullName(), failure.Err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Archives stored under %s\n", backupDir)
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringP("config", "c", "", "Backup configuration file (YAML)")
	backupCmd.Flags().String("backup-dir", "", "Archive store root (default: $GITVAULT_BACKUP_DIR or ~/.local/share/gitvault/backups)")
	backupCmd.Flags().Int("retention", 7, "Timestamped archives to keep per repository (0 = keep everything)")
	backupCmd.Flags().String("token", "", "Hosting-service access token (overrides environment and gh CLI)")
}
