package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/go-github/v82/github"
	"github.com/inovacc/gitvault/internal/core"
	"github.com/inovacc/gitvault/internal/git"
	"github.com/inovacc/gitvault/internal/notify"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <archive> <destination>",
	Short: "Restore a repository from a backup archive",
	Long: `Restore extracts a backup archive and materializes the repository at a
destination, selected by --mode:

  local          clone the mirror into a filesystem path
  remote-create  create a new owner/name repository and push everything
  mirror-force   overwrite the refs of an existing owner/name repository

remote-create never touches an existing repository; if the destination
already exists the restore stops and suggests mirror-force.
mirror-force discards destination-only history, so it asks for
confirmation unless --force is given.`,
	Example: `  gitvault restore archive.tar.gz ./hello-world --mode local
  gitvault restore archive.tar.gz octocat/hello-world-restored --mode remote-create
  gitvault restore archive.tar.gz octocat/hello-world --mode mirror-force --force
  gitvault restore archive.tar.gz myorg/api --mode remote-create --private=false --lfs`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeStr, _ := cmd.Flags().GetString("mode")
		newName, _ := cmd.Flags().GetString("name")
		private, _ := cmd.Flags().GetBool("private")
		force, _ := cmd.Flags().GetBool("force")
		pushLFS, _ := cmd.Flags().GetBool("lfs")
		flagToken, _ := cmd.Flags().GetString("token")
		notifyWebhook, _ := cmd.Flags().GetString("notify-webhook")

		mode, err := core.ParseRestoreMode(modeStr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		// Local restore needs no credential; the remote modes do.
		token, source, err := core.ResolveToken(flagToken)
		if err != nil {
			if mode != core.RestoreLocal {
				return err
			}

			token = ""
		} else {
			slog.Debug("resolved credential", slog.String("source", string(source)))
		}

		gitClient, err := git.NewClient(token)
		if err != nil {
			return err
		}

		var apiClient *github.Client
		if mode != core.RestoreLocal {
			apiClient = core.NewGitHubClient(ctx, token)
		}

		restorer := core.NewRestorer(gitClient, core.RestoreOptions{
			Mode:    mode,
			Dest:    args[1],
			NewName: newName,
			Private: private,
			Force:   force,
			PushLFS: pushLFS,
			Confirm: core.PromptCaller,
			Prompt: func(message string) (bool, error) {
				return promptConfirm(message + " [y/N]: "), nil
			},
			GitHub: apiClient,
			Logger: slog.Default(),
		})

		result, err := restorer.Run(ctx, args[0])

		if dispatcher := newNotifier(notifyWebhook); dispatcher != nil {
			event := notify.NewEvent(notify.EventRestore).WithRepository(args[1])
			event.Archive = args[0]

			if err != nil {
				event = event.WithError(err)
			} else {
				event = event.WithRepository(result.Dest).WithCounts(1, 0)
			}

			dispatcher.Dispatch(ctx, event)
		}

		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(os.Stdout, "Restored %s to %s (%s)\n", args[0], result.Dest, result.Mode)

		for _, warning := range result.Warnings {
			_, _ = fmt.Fprintf(os.Stdout, "  warning: %s\n", warning)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("mode", "m", "local", "Restore mode: local, remote-create, or mirror-force")
	restoreCmd.Flags().String("name", "", "Override the repository name when creating (remote-create)")
	restoreCmd.Flags().Bool("private", true, "Create the repository as private (remote-create)")
	restoreCmd.Flags().BoolP("force", "f", false, "Replace an existing local destination / skip force-push confirmation")
	restoreCmd.Flags().Bool("lfs", false, "Push large-object payloads after the refs")
	restoreCmd.Flags().String("token", "", "Hosting-service access token (overrides environment and gh CLI)")
	restoreCmd.Flags().String("notify-webhook", "", "Webhook URL notified when the restore finishes")
}
