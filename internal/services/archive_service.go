package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveService keeps raw webhook bodies for audit and replay.
type ArchiveService interface {
	ArchiveWebhook(ctx context.Context, eventName, eventID string, body []byte) (string, error)
	EnsureBucketExists(ctx context.Context) error
	// Check reports whether the archive bucket is reachable.
	Check(ctx context.Context) error
}

type minioArchive struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewArchiveService(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (ArchiveService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, err
	}
	return &minioArchive{client: client, bucket: bucket, now: time.Now}, nil
}

func (m *minioArchive) ArchiveWebhook(ctx context.Context, eventName, eventID string, body []byte) (string, error) {
	key := WebhookObjectKey(m.now(), eventName, eventID)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive webhook %s: %w", key, err)
	}
	return key, nil
}

func (m *minioArchive) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *minioArchive) Check(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}

// WebhookObjectKey partitions archived bodies by UTC day.
func WebhookObjectKey(receivedAt time.Time, eventName, eventID string) string {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	if eventName == "" {
		eventName = "UNKNOWN"
	}
	name := strings.NewReplacer("/", "_", " ", "_").Replace(eventName + "-" + eventID)
	return fmt.Sprintf("webhooks/%s/%s.json", receivedAt.UTC().Format("2006/01/02"), name)
}
