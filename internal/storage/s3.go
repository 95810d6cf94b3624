// Package storage mirrors processed output files to S3 for durable
// retrieval beyond the local retention window. Mirroring is optional,
// controlled by configuration.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Mirror uploads output artifacts to an S3 bucket.
type Mirror struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	enc      *encryptor
}

// NewMirror builds an S3 mirror. Returns nil with no error when bucket
// is empty, meaning mirroring is disabled.
func NewMirror(ctx context.Context, bucket, prefix, region, encryptionKey string) (*Mirror, error) {
	if bucket == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	m := &Mirror{
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:   bucket,
		prefix:   prefix,
	}
	if encryptionKey != "" {
		m.enc, err = newEncryptor(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("init artifact encryption: %w", err)
		}
	}
	log.Info().Str("bucket", bucket).Bool("encrypted", m.enc != nil).Msg("S3 artifact mirror enabled")
	return m, nil
}

// Put uploads the file under <prefix>/<name>. When an encryption key is
// configured the body is sealed client-side first.
func (m *Mirror) Put(ctx context.Context, name, filePath string) error {
	if m == nil {
		return nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	key := path.Join(m.prefix, name)
	if m.enc != nil {
		if data, err = m.enc.seal(data); err != nil {
			return fmt.Errorf("seal artifact: %w", err)
		}
		key += ".enc"
	}

	uctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	_, err = m.uploader.Upload(uctx, &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   newByteReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload artifact %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int("size", len(data)).Msg("artifact mirrored")
	return nil
}

// PutAsync mirrors in the background; failures are logged, never fatal.
func (m *Mirror) PutAsync(name, filePath string) {
	if m == nil {
		return
	}
	go func() {
		if err := m.Put(context.Background(), name, filePath); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("artifact mirror failed")
		}
	}()
}
