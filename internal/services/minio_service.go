package services

import (
	"context"
	"fmt"
	"io"

	"vipbot/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FileFetcher downloads a file previously received through the messaging gateway.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileHandle string) (io.ReadCloser, int64, error)
}

// ProofArchive keeps a copy of every forwarded payment screenshot.
type ProofArchive interface {
	// Archive stores the proof and returns the object name.
	Archive(ctx context.Context, buyer models.Buyer, methodID, fileHandle string) (string, error)
	EnsureBucketExists(ctx context.Context) error
}

// ObjectStorage is the subset of the MinIO client used by the archive.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

type minioProofArchive struct {
	storage ObjectStorage
	bucket  string
	fetcher FileFetcher
}

// NewMinioClient connects to a MinIO/S3 endpoint.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

// NewProofArchive stores proofs in bucket, reading them through fetcher.
func NewProofArchive(storage ObjectStorage, bucket string, fetcher FileFetcher) ProofArchive {
	return &minioProofArchive{storage: storage, bucket: bucket, fetcher: fetcher}
}

func proofObjectName(subscriberID string, id uuid.UUID) string {
	return fmt.Sprintf("proofs/%s/%s.jpg", subscriberID, id.String())
}

func (m *minioProofArchive) Archive(ctx context.Context, buyer models.Buyer, methodID, fileHandle string) (string, error) {
	body, size, err := m.fetcher.FetchFile(ctx, fileHandle)
	if err != nil {
		return "", fmt.Errorf("fetch proof: %w", err)
	}
	defer body.Close()

	objectName := proofObjectName(buyer.ID, uuid.New())
	_, err = m.storage.PutObject(ctx, m.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: "image/jpeg",
		UserMetadata: map[string]string{
			"subscriber-id":  buyer.ID,
			"payment-method": methodID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload proof: %w", err)
	}
	return objectName, nil
}

func (m *minioProofArchive) EnsureBucketExists(ctx context.Context) error {
	found, err := m.storage.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.storage.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}
