package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentspace/internal/app/policies"
)

var (
	ErrNotConfigured  = errors.New("s3: endpoint is not configured")
	errInvalidBooking = errors.New("s3: invalid booking id")
)

const receiptPrefix = "receipts"

type Options struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
}

// ReceiptArchive writes fee snapshot receipts to an S3-compatible bucket.
// Objects are written once per booking and never overwritten by the service.
type ReceiptArchive struct {
	bucket         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewReceiptArchive(opts Options, logger *slog.Logger) (*ReceiptArchive, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	minioClient, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptArchive{bucket: bucket, client: minioClient, logger: logger}, nil
}

// Put stores body as receipts/<booking>.json and returns its s3:// location.
func (a *ReceiptArchive) Put(ctx context.Context, bookingID string, body []byte) (string, error) {
	key, err := receiptKey(bookingID)
	if err != nil {
		return "", err
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	a.logger.Info("receipt archived", "booking_id", bookingID, "location", location)
	return location, nil
}

func (a *ReceiptArchive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

// NoopArchive is used when no bucket is configured. It stores nothing and
// reports no location.
type NoopArchive struct{}

func (NoopArchive) Put(context.Context, string, []byte) (string, error) {
	return "", nil
}

func receiptKey(bookingID string) (string, error) {
	id := strings.Trim(strings.TrimSpace(bookingID), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", errInvalidBooking
	}
	return receiptPrefix + "/" + id + ".json", nil
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var (
	_ policies.ReceiptArchive = (*ReceiptArchive)(nil)
	_ policies.ReceiptArchive = NoopArchive{}
)
