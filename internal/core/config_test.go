package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inovacc/gitvault/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		input     string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{"octocat/hello-world", "octocat", "hello-world", false},
		{"myorg/my_repo", "myorg", "my_repo", false},
		{"hello-world", "", "", true},
		{"/hello-world", "", "", true},
		{"octocat/", "", "", true},
		{"a/b/c", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := SplitFullName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SplitFullName(%q) expected error, got %q/%q", tt.input, owner, name)
				}

				return
			}

			if err != nil {
				t.Fatalf("SplitFullName(%q) error = %v", tt.input, err)
			}

			if owner != tt.wantOwner || name != tt.wantName {
				t.Errorf("SplitFullName(%q) = %q/%q, want %q/%q", tt.input, owner, name, tt.wantOwner, tt.wantName)
			}
		})
	}
}

func TestConfig_WriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitvault.yaml")

	cfg := DefaultConfig([]RepoRef{
		{Owner: "octocat", Name: "hello-world"},
		{Owner: "myorg", Name: "api"},
	})

	require.NoError(t, cfg.Write(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, []string{"myorg/api", "octocat/hello-world"}, loaded.Repositories)
	require.Equal(t, "0 3 * * *", loaded.Schedule)
	require.Equal(t, "local", loaded.Storage.Type)
	require.Equal(t, 7, loaded.Retention.Count)
	require.False(t, loaded.Notifications.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Repositories: []string{"octocat/hello-world"},
				Storage:      StorageConfig{Type: "s3", Bucket: "backups"},
				Retention:    RetentionConfig{Count: 7},
			},
		},
		{
			name: "bad repository name",
			cfg: Config{
				Repositories: []string{"no-slash"},
			},
			wantErr: true,
		},
		{
			name: "unknown storage type",
			cfg: Config{
				Storage: StorageConfig{Type: "ftp"},
			},
			wantErr: true,
		},
		{
			name: "negative retention",
			cfg: Config{
				Retention: RetentionConfig{Count: -1},
			},
			wantErr: true,
		},
		{
			name: "empty config is fine",
			cfg:  Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate() expected error")
			}

			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestConfig_SinkConfig(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{
			Type:   "github",
			Owner:  "octocat",
			Repo:   "backup-vault",
			Prefix: "nightly",
		},
	}

	sinkCfg, err := cfg.SinkConfig("tok-123")
	require.NoError(t, err)
	require.Equal(t, storage.SinkGitHub, sinkCfg.Type)
	require.Equal(t, "octocat", sinkCfg.Owner)
	require.Equal(t, "backup-vault", sinkCfg.Repo)
	require.Equal(t, "tok-123", sinkCfg.Token)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repositories: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
