package storage

import "github.com/andresuchdata/dairyplan/backend-go/internal/config"

func configFor(backend string) config.StorageConfig {
	return config.StorageConfig{Backend: backend}
}
