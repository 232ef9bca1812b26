package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chartmuseum/storage"
)

// SevallaConfig encapsulates the connection info for Sevalla (S3-compatible) storage.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// SevallaClient implements Backend for Sevalla / S3-compatible services.
type SevallaClient struct {
	backend storage.Backend
}

// NewSevallaClient builds a new SevallaClient backed by chartmuseum's Amazon storage backend.
func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sevalla endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("sevalla credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sevalla bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		strings.Trim(cfg.Prefix, "/"),
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return &SevallaClient{backend: backend}, nil
}

func (c *SevallaClient) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := c.backend.PutObject(name, data); err != nil {
		return fmt.Errorf("sevalla put %s failed: %w", name, err)
	}
	return nil
}

// Get distinguishes a missing entry from a transport failure by listing, since
// the chartmuseum backend does not expose typed not-found errors.
func (c *SevallaClient) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	object, err := c.backend.GetObject(name)
	if err != nil {
		exists, existsErr := c.Exists(ctx, name)
		if existsErr == nil && !exists {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sevalla get %s failed: %w", name, err)
	}
	return object.Content, true, nil
}

func (c *SevallaClient) Delete(ctx context.Context, name string) error {
	exists, err := c.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := c.backend.DeleteObject(name); err != nil {
		return fmt.Errorf("sevalla delete %s failed: %w", name, err)
	}
	return nil
}

func (c *SevallaClient) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	objects, err := c.List(ctx, name)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Key == name {
			return true, nil
		}
	}
	return false, nil
}

// List lists all objects under the configured prefix whose name ends with suffix.
func (c *SevallaClient) List(ctx context.Context, suffix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects("")
	if err != nil {
		return nil, fmt.Errorf("sevalla list failed: %w", err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		key := strings.TrimPrefix(object.Path, "/")
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		results = append(results, ObjectInfo{
			Key:  key,
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

var _ Backend = (*SevallaClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
