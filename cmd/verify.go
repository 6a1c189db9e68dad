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

var verifyCmd = &cobra.Command{
	Use:   "verify <archive-or-directory>",
	Short: "Check that backup archives are restorable",
	Long: `Verify runs a fixed sequence of checks against a backup archive: archive
integrity, repository structure, object-graph soundness, ref inventory,
large-object payloads, and (optionally) a comparison against the live
remote repository. All checks run even when an early one fails, so a
single pass reports everything wrong with an archive.

Given a directory, every archive inside it is verified independently.
Only the first three checks can fail verification; the rest produce
warnings.`,
	Example: `  gitvault verify backups/octocat_hello-world/octocat_hello-world_2026-08-30_03-00-00.tar.gz
  gitvault verify backups/ --quick
  gitvault verify archive.tar.gz --remote octocat/hello-world`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quick, _ := cmd.Flags().GetBool("quick")
		verbose, _ := cmd.Flags().GetBool("verbose")
		remote, _ := cmd.Flags().GetString("remote")
		flagToken, _ := cmd.Flags().GetString("token")
		notifyWebhook, _ := cmd.Flags().GetString("notify-webhook")

		ctx := cmd.Context()

		// Verification of local archives works without credentials; only the
		// live comparison needs an authenticated client.
		token, source, err := core.ResolveToken(flagToken)
		if err != nil {
			if remote != "" {
				return err
			}

			token = ""
		} else {
			slog.Debug("resolved credential", slog.String("source", string(source)))
		}

		var apiClient *github.Client
		if remote != "" {
			apiClient = core.NewGitHubClient(ctx, token)
		}

		gitClient, err := git.NewClient(token)
		if err != nil {
			return err
		}

		verifier := core.NewVerifier(gitClient, core.VerifyOptions{
			Quick:    quick,
			LiveRepo: remote,
			GitHub:   apiClient,
			Logger:   slog.Default(),
		})

		target := args[0]

		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("cannot verify %s: %w", target, err)
		}

		var reports []*core.Report

		if info.IsDir() {
			reports, err = verifier.VerifyDirectory(ctx, target)
		} else {
			var report *core.Report

			report, err = verifier.VerifyArchive(ctx, target)
			if report != nil {
				reports = []*core.Report{report}
			}
		}

		if err != nil {
			return err
		}

		failed := 0

		for _, report := range reports {
			printReport(report, verbose)

			if !report.OK() {
				failed++
			}
		}

		if dispatcher := newNotifier(notifyWebhook); dispatcher != nil {
			event := notify.NewEvent(notify.EventVerify).WithCounts(len(reports)-failed, failed)
			event.Archive = target

			dispatcher.Dispatch(ctx, event)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d archives failed verification", failed, len(reports))
		}

		_, _ = fmt.Fprintf(os.Stdout, "\nAll %d archive(s) verified\n", len(reports))

		return nil
	},
}

func printReport(report *core.Report, verbose bool) {
	_, _ = fmt.Fprintf(os.Stdout, "\n%s\n", report.Archive)

	for _, check := range report.Checks {
		if !verbose && check.Status == core.StatusPass {
			continue
		}

		line := fmt.Sprintf("  [%s] %s", check.Status, check.Name)
		if check.Detail != "" {
			line += ": " + check.Detail
		}

		_, _ = fmt.Fprintln(os.Stdout, line)
	}

	switch {
	case report.Errors > 0:
		_, _ = fmt.Fprintf(os.Stdout, "  result: FAILED (%d errors, %d warnings)\n", report.Errors, report.Warnings)
	case report.Warnings > 0:
		_, _ = fmt.Fprintf(os.Stdout, "  result: ok with %d warning(s)\n", report.Warnings)
	default:
		_, _ = fmt.Fprintln(os.Stdout, "  result: ok")
	}
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("quick", false, "Connectivity-only object check (faster, less thorough)")
	verifyCmd.Flags().BoolP("verbose", "v", false, "Show passing checks, not just warnings and failures")
	verifyCmd.Flags().String("remote", "", "Compare against the live repository (owner/name)")
	verifyCmd.Flags().String("token", "", "Hosting-service access token (overrides environment and gh CLI)")
	verifyCmd.Flags().String("notify-webhook", "", "Webhook URL notified with the verification result")
}
