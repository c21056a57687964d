package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"vipbot/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProofArchive_UploadsUnderSubscriberPrefix(t *testing.T) {
	ctx := context.Background()
	buyer := models.Buyer{ID: "42"}

	fetcher := &MockFileFetcher{}
	fetcher.On("FetchFile", ctx, "file-1").Return(io.NopCloser(strings.NewReader("jpeg")), int64(4), nil).Once()

	storage := &MockObjectStorage{}
	storage.On("PutObject", ctx, "proofs-bucket", mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "proofs/42/") && strings.HasSuffix(name, ".jpg")
	}), mock.Anything, int64(4), mock.MatchedBy(func(opts minio.PutObjectOptions) bool {
		return opts.UserMetadata["payment-method"] == "A" && opts.UserMetadata["subscriber-id"] == "42"
	})).Return(minio.UploadInfo{}, nil).Once()

	archive := NewProofArchive(storage, "proofs-bucket", fetcher)
	name, err := archive.Archive(ctx, buyer, "A", "file-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "proofs/42/"))

	fetcher.AssertExpectations(t)
	storage.AssertExpectations(t)
}

func TestProofArchive_FetchFailure(t *testing.T) {
	ctx := context.Background()
	fetcher := &MockFileFetcher{}
	fetcher.On("FetchFile", ctx, "file-1").Return(nil, int64(0), errors.New("expired file")).Once()
	storage := &MockObjectStorage{}

	archive := NewProofArchive(storage, "proofs-bucket", fetcher)
	_, err := archive.Archive(ctx, models.Buyer{ID: "42"}, "A", "file-1")
	assert.ErrorContains(t, err, "fetch proof")
	storage.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProofArchive_EnsureBucketExists(t *testing.T) {
	ctx := context.Background()

	existing := &MockObjectStorage{}
	existing.On("BucketExists", ctx, "b").Return(true, nil).Once()
	assert.NoError(t, NewProofArchive(existing, "b", nil).EnsureBucketExists(ctx))
	existing.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)

	missing := &MockObjectStorage{}
	missing.On("BucketExists", ctx, "b").Return(false, nil).Once()
	missing.On("MakeBucket", ctx, "b", minio.MakeBucketOptions{}).Return(nil).Once()
	assert.NoError(t, NewProofArchive(missing, "b", nil).EnsureBucketExists(ctx))
	missing.AssertExpectations(t)
}
