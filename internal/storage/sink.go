// Package storage provides the upload sink abstraction: a completed backup
// archive is handed to a sink for off-host durability. The pipeline treats
// every sink type uniformly and is not responsible for sink-specific
// authentication setup beyond what Config carries.
package storage

import (
	"context"
	"fmt"
)

// SinkType is the closed set of supported sink backends.
type SinkType int

const (
	SinkLocal SinkType = iota
	SinkS3
	SinkGCS
	SinkAzure
	SinkGitHub
)

func (t SinkType) String() string {
	switch t {
	case SinkLocal:
		return "local"
	case SinkS3:
		return "s3"
	case SinkGCS:
		return "gcs"
	case SinkAzure:
		return "azure"
	case SinkGitHub:
		return "github"
	default:
		return fmt.Sprintf("SinkType(%d)", int(t))
	}
}

// ParseSinkType converts a configuration string to a SinkType.
func ParseSinkType(s string) (SinkType, error) {
	switch s {
	case "local":
		return SinkLocal, nil
	case "s3":
		return SinkS3, nil
	case "gcs":
		return SinkGCS, nil
	case "azure":
		return SinkAzure, nil
	case "github":
		return SinkGitHub, nil
	default:
		return SinkLocal, fmt.Errorf("unknown storage type: %q (expected local, s3, gcs, azure, or github)", s)
	}
}

// Config carries the union of sink-specific settings. Only the fields for
// the selected Type are consulted.
type Config struct {
	Type SinkType

	// local
	Dir string

	// s3 / gcs / azure
	Bucket    string
	Region    string
	Prefix    string
	Container string
	Account   string
	Key       string

	// github release sink
	Owner string
	Repo  string
	Token string
}

// Sink uploads a local archive file under a logical destination name.
type Sink interface {
	// Upload stores the file at localPath under destName.
	Upload(ctx context.Context, localPath, destName string) error

	// Name returns the sink identifier for logging.
	Name() string
}

// NewSink constructs the sink backend selected by cfg.Type.
func NewSink(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Type {
	case SinkLocal:
		return NewLocalSink(cfg.Dir)
	case SinkS3:
		return NewS3Sink(ctx, cfg)
	case SinkGCS:
		return NewGCSSink(ctx, cfg)
	case SinkAzure:
		return NewAzureSink(cfg)
	case SinkGitHub:
		return NewGitHubSink(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %v", cfg.Type)
	}
}
