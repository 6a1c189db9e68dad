package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/inovacc/gitvault/internal/storage"
	"gopkg.in/yaml.v3"
)

// Config is the external configuration value object. It is loaded once per
// invocation and treated as read-only.
type Config struct {
	// Repositories lists the repositories to back up as "owner/name".
	Repositories []string `yaml:"repositories"`

	// Schedule is a cron expression consumed by an external scheduler;
	// the pipeline itself never interprets it.
	Schedule string `yaml:"schedule"`

	Storage       StorageConfig      `yaml:"storage"`
	Retention     RetentionConfig    `yaml:"retention"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// StorageConfig selects and parameterizes the upload sink.
type StorageConfig struct {
	Type      string `yaml:"type"`
	Dir       string `yaml:"dir,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Container string `yaml:"container,omitempty"`
	Account   string `yaml:"account,omitempty"`
	Key       string `yaml:"key,omitempty"`
	Owner     string `yaml:"owner,omitempty"`
	Repo      string `yaml:"repo,omitempty"`
}

// RetentionConfig bounds the number of timestamped archives kept per
// repository. Zero disables pruning.
type RetentionConfig struct {
	Count int `yaml:"count"`
}

// NotificationConfig toggles completion notifications.
type NotificationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// DefaultConfig returns a configuration with conservative defaults for a
// generated configuration file, carrying the discovered repository list.
func DefaultConfig(repos []RepoRef) *Config {
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.FullName())
	}

	sort.Strings(names)

	return &Config{
		Repositories: names,
		Schedule:     "0 3 * * *",
		Storage:      StorageConfig{Type: "local", Dir: "backups"},
		Retention:    RetentionConfig{Count: 7},
		Notifications: NotificationConfig{
			Enabled: false,
		},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the parts of the configuration the pipeline interprets.
func (c *Config) Validate() error {
	for _, repo := range c.Repositories {
		if _, _, err := SplitFullName(repo); err != nil {
			return err
		}
	}

	if c.Storage.Type != "" {
		if _, err := storage.ParseSinkType(c.Storage.Type); err != nil {
			return err
		}
	}

	if c.Retention.Count < 0 {
		return fmt.Errorf("retention count must not be negative")
	}

	return nil
}

// Encode writes the YAML form of the config to w.
func (c *Config) Encode(w io.Writer) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = w.Write(data)

	return err
}

// Write marshals the configuration to path.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}

// SinkConfig maps the storage section to the sink package's config,
// injecting token for the github sink type.
func (c *Config) SinkConfig(token string) (storage.Config, error) {
	sinkType, err := storage.ParseSinkType(c.Storage.Type)
	if err != nil {
		return storage.Config{}, err
	}

	return storage.Config{
		Type:      sinkType,
		Dir:       c.Storage.Dir,
		Bucket:    c.Storage.Bucket,
		Region:    c.Storage.Region,
		Prefix:    c.Storage.Prefix,
		Container: c.Storage.Container,
		Account:   c.Storage.Account,
		Key:       c.Storage.Key,
		Owner:     c.Storage.Owner,
		Repo:      c.Storage.Repo,
		Token:     token,
	}, nil
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (owner, name string, err error) {
	owner, name, found := strings.Cut(fullName, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository name %q (expected owner/name)", fullName)
	}

	return owner, name, nil
}
