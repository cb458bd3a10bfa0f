package storage

import (
	"context"
	"fmt"
	"os"
)

// Open selects a storage.Store implementation using environment variables.
//
//	SEQPROV_STORAGE_DRIVER: s3|memory (default s3)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("SEQPROV_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverS3)
	}
	switch Driver(driver) {
	case DriverS3:
		return OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
