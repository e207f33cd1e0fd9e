package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mealmetrics/backend/config"
)

// PhotoService archives preprocessed meal photos in S3. Uploads are
// best-effort: a storage failure never blocks analysis or logging.
type PhotoService struct {
	s3Config *config.S3Config
}

// NewPhotoService creates a PhotoService. A nil s3Config disables archival.
func NewPhotoService(s3Config *config.S3Config) *PhotoService {
	return &PhotoService{s3Config: s3Config}
}

// Enabled reports whether photo archival is configured.
func (s *PhotoService) Enabled() bool {
	return s.s3Config != nil
}

// Upload stores a JPEG under meals/<user>/<uuid>.jpg and returns the object
// key.
func (s *PhotoService) Upload(ctx context.Context, userID int64, jpegData []byte) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("photo storage is not configured")
	}

	key := fmt.Sprintf("meals/%d/%s.jpg", userID, uuid.New().String())
	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(jpegData),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo to S3: %w", err)
	}
	return key, nil
}

// PresignedURL returns a temporary GET URL for a stored photo.
func (s *PhotoService) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("photo storage is not configured")
	}
	return s.s3Config.GeneratePresignedURL(ctx, key, expiration)
}
