package services

import (
	"context"
	"io"

	"vipbot/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendText(ctx context.Context, recipientID, text string, keyboard *models.Keyboard) error {
	args := m.Called(ctx, recipientID, text, keyboard)
	return args.Error(0)
}

func (m *MockNotifier) SendPhoto(ctx context.Context, recipientID, fileHandle, caption string) error {
	args := m.Called(ctx, recipientID, fileHandle, caption)
	return args.Error(0)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Load(ctx context.Context) *models.Ledger {
	args := m.Called(ctx)
	return args.Get(0).(*models.Ledger)
}

func (m *MockLedgerRepository) Save(ctx context.Context, ledger *models.Ledger) error {
	args := m.Called(ctx, ledger)
	return args.Error(0)
}

func (m *MockLedgerRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockProofArchive struct {
	mock.Mock
}

func (m *MockProofArchive) Archive(ctx context.Context, buyer models.Buyer, methodID, fileHandle string) (string, error) {
	args := m.Called(ctx, buyer, methodID, fileHandle)
	return args.String(0), args.Error(1)
}

func (m *MockProofArchive) EnsureBucketExists(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockFileFetcher struct {
	mock.Mock
}

func (m *MockFileFetcher) FetchFile(ctx context.Context, fileHandle string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, fileHandle)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.Error(2)
}

type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectStorage) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStorage) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}
