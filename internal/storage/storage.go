package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
)

// ObjectInfo represents metadata for a stored entry.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Backend captures the key-value operations the model store needs. Put must
// replace an entry atomically; Delete of a missing entry is not an error.
type Backend interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, suffix string) ([]ObjectInfo, error)
}

var errInvalidName = errors.New("invalid entry name")

// New builds the backend selected by cfg.Backend. The local backend roots at modelDir.
func New(ctx context.Context, cfg config.StorageConfig, modelDir string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		return NewLocalBackend(modelDir)
	case "s3", "minio":
		return NewMinioBackend(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.UseSSL,
		})
	case "sevalla":
		return NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", errInvalidName, name)
	}
	return nil
}
