package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	apperrors "github.com/bookbonus/bonus-backend/errors"
)

// R2FileStorage stores receipt documents in Cloudflare R2 (S3-compatible).
type R2FileStorage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucketName string
}

// NewR2FileStorage creates a new R2-backed file storage instance.
func NewR2FileStorage(accountID, bucketName, accessKeyID, secretAccessKey string) (*R2FileStorage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: &endpoint,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})

	return &R2FileStorage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucketName,
	}, nil
}

// Save uploads an object to R2.
func (s *R2FileStorage) Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return apperrors.NewStorageError(err)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucketName,
		Key:           &key,
		Body:          reader,
		ContentLength: &size,
		ContentType:   &contentType,
	})
	if err != nil {
		return apperrors.NewStorageError(fmt.Errorf("r2 put object failed: %w", err))
	}
	return nil
}

// Load opens the object for reading.
func (s *R2FileStorage) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucketName,
		Key:    &key,
	})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Errorf("r2 get object failed: %w", err))
	}
	return out.Body, nil
}

// Delete removes an object from R2.
func (s *R2FileStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return apperrors.NewStorageError(err)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucketName,
		Key:    &key,
	})
	if err != nil {
		return apperrors.NewStorageError(fmt.Errorf("r2 delete object failed: %w", err))
	}
	return nil
}

// Exists reports whether an object is present in the bucket.
func (s *R2FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, apperrors.NewStorageError(err)
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucketName,
		Key:    &key,
	})
	if err != nil {
		var apiErr interface{ ErrorCode() string }
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return false, nil
		}
		return false, apperrors.NewStorageError(fmt.Errorf("r2 head object failed: %w", err))
	}
	return true, nil
}

// GetURL returns a presigned download URL with a 5-minute TTL.
func (s *R2FileStorage) GetURL(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", apperrors.NewStorageError(err)
	}
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucketName,
		Key:    &key,
	}, s3.WithPresignExpires(5*time.Minute))
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Errorf("r2 presign failed: %w", err))
	}
	return result.URL, nil
}
