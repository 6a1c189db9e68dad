package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureSink uploads archives to an Azure Blob Storage container using
// shared-key authentication.
type AzureSink struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureSink creates an Azure sink for cfg.Container in cfg.Account.
func NewAzureSink(cfg Config) (*AzureSink, error) {
	if cfg.Account == "" || cfg.Container == "" {
		return nil, fmt.Errorf("azure sink requires an account and a container")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.Account)

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureSink{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}, nil
}

func (s *AzureSink) Name() string { return "azure" }

func (s *AzureSink) Upload(ctx context.Context, localPath, destName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	blobName := destName
	if s.prefix != "" {
		blobName = path.Join(s.prefix, destName)
	}

	if _, err := s.client.UploadFile(ctx, s.container, blobName, f, nil); err != nil {
		return fmt.Errorf("failed to upload to azure container %s: %w", s.container, err)
	}

	return nil
}
