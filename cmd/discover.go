package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/inovacc/gitvault/internal/core"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Enumerate repositories eligible for backup",
	Long: `Discover lists the repositories visible under one or more scopes: an
organization (--org), a user (--user), or the authenticated account
itself (--self). Results are deduplicated across scopes, filtered, and
printed one repository per line.

Use --output config to emit a ready-to-edit backup configuration file
seeded with the discovered repositories.`,
	Example: `  gitvault discover --self
  gitvault discover --org myorg --public-only --limit 50
  gitvault discover --org myorg --user octocat --include-forks
  gitvault discover --self --output config --config-out gitvault.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		org, _ := cmd.Flags().GetString("org")
		user, _ := cmd.Flags().GetString("user")
		self, _ := cmd.Flags().GetBool("self")
		publicOnly, _ := cmd.Flags().GetBool("public-only")
		includeForks, _ := cmd.Flags().GetBool("include-forks")
		includeArchived, _ := cmd.Flags().GetBool("include-archived")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		configOut, _ := cmd.Flags().GetString("config-out")
		flagToken, _ := cmd.Flags().GetString("token")

		if org == "" && user == "" && !self {
			return fmt.Errorf("at least one scope is required: --org, --user, or --self")
		}

		token, source, err := core.ResolveToken(flagToken)
		if err != nil {
			return err
		}

		slog.Debug("resolved credential", slog.String("source", string(source)))

		ctx := cmd.Context()
		client := core.NewGitHubClient(ctx, token)

		login, err := core.VerifyCredential(ctx, client)
		if err != nil {
			return err
		}

		slog.Debug("authenticated", slog.String("login", login))

		discoverer := core.NewDiscoverer(client, slog.Default())

		repos, err := discoverer.Discover(ctx, core.DiscoverOptions{
			Org:             org,
			User:            user,
			Self:            self,
			PublicOnly:      publicOnly,
			IncludeForks:    includeForks,
			IncludeArchived: includeArchived,
			Limit:           limit,
			Logger:          slog.Default(),
		})
		if err != nil {
			return err
		}

		switch output {
		case "list":
			for _, repo := range repos {
				_, _ = fmt.Fprintln(os.Stdout, repo.FullName())
			}

		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			if err := enc.Encode(repos); err != nil {
				return err
			}

		case "config":
			cfg := core.DefaultConfig(repos)

			if configOut == "" {
				return cfg.Encode(os.Stdout)
			}

			if err := cfg.Write(configOut); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "Wrote configuration for %d repositories to %s\n", len(repos), configOut)

		default:
			return fmt.Errorf("unknown output format: %q (expected list, json, or config)", output)
		}

		slog.Info("discovery complete", slog.Int("repositories", len(repos)))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().String("org", "", "Discover repositories of this organization")
	discoverCmd.Flags().String("user", "", "Discover repositories of this user")
	discoverCmd.Flags().Bool("self", false, "Discover repositories of the authenticated account")
	discoverCmd.Flags().Bool("public-only", false, "Exclude private repositories")
	discoverCmd.Flags().Bool("include-forks", false, "Include forked repositories")
	discoverCmd.Flags().Bool("include-archived", false, "Include archived repositories")
	discoverCmd.Flags().Int("limit", 0, "Keep only the first N repositories after filtering (0 = no limit)")
	discoverCmd.Flags().StringP("output", "o", "list", "Output format: list, json, or config")
	discoverCmd.Flags().String("config-out", "", "Write generated configuration to this file (with --output config)")
	discoverCmd.Flags().String("token", "", "Hosting-service access token (overrides environment and gh CLI)")
}
