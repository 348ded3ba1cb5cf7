package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"chatdesk/chatdesk/config"
	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOStore keeps the whole chat state as one JSON object in a bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	object string
}

func NewMinIOStore(ctx context.Context, cfg config.Config) (*MinIOStore, error) {
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOSecure,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	logging.AppLogger.Info("Connecting to object storage",
		zap.String("endpoint", cfg.MinIOEndpoint), zap.String("bucket", cfg.MinIOBucket))

	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinIOBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.MinIOBucket, err)
		}
	}
	return &MinIOStore{client: client, bucket: cfg.MinIOBucket, object: cfg.MinIOObject}, nil
}

func (m *MinIOStore) Load(ctx context.Context) (*sessions.StoreState, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces once the body is read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", m.bucket, m.object, err)
	}
	return decodeState(data)
}

func (m *MinIOStore) Save(ctx context.Context, st sessions.StoreState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", m.bucket, m.object, err)
	}
	return nil
}

// Ping confirms the bucket is still reachable.
func (m *MinIOStore) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func decodeState(data []byte) (*sessions.StoreState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var st sessions.StoreState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state object: %w", err)
	}
	return &st, nil
}
