package blob

import (
	"context"
	"fmt"

	"penguinboard/internal/blob/core"
	"penguinboard/internal/infra/blob/fs"
	"penguinboard/internal/infra/blob/memory"
	"penguinboard/internal/infra/blob/s3"
)

// Config selects and configures a driver. The dashboard command fills it from
// PENGUINBOARD_BLOB_* environment variables and flags.
type Config struct {
	Driver string `env:"DRIVER" envDefault:"fs"`
	FSRoot string `env:"FS_ROOT" envDefault:"./blobdata"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3PathStyle       bool   `env:"S3_PATH_STYLE"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"S3_SESSION_TOKEN"`
}

// Open constructs the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver, err := core.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("blob driver s3 requires a bucket")
		}
		return s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			SessionToken:    cfg.S3SessionToken,
		})
	}
	return nil, fmt.Errorf("unknown blob driver %s", driver)
}

// NewFilesystem returns the local directory driver.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns the in-process driver.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 driver backed by an in-process fake.
func NewMockS3ForTests() Store {
	store, _ := s3.NewMockForTests()
	return store
}
