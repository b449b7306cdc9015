package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// S3Backend stores payloads in Amazon S3 or a compatible object store. The
// handle is the SHA-256 hex of the ciphertext, used as the object key under
// the configured prefix.
type S3Backend struct {
	client     *s3.S3
	bucketName string
	prefix     string
	log        *slog.Logger
}

// NewS3Backend creates an S3 backend. An empty endpoint targets AWS proper;
// otherwise any S3-compatible service works.
func NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Backend, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("creating S3 session: %w", err)
	}

	return &S3Backend{
		client:     s3.New(sess),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		log:        log,
	}, nil
}

// Upload puts the ciphertext under its content hash.
func (b *S3Backend) Upload(ctx context.Context, data []byte) (string, error) {
	hash := sha256.Sum256(data)
	handle := hex.EncodeToString(hash[:])

	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.objectKey(handle)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3 put: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Uploaded payload to S3", "handle", handle, "size", len(data))
	return handle, nil
}

// Fetch gets the object behind a handle.
func (b *S3Backend) Fetch(ctx context.Context, handle string) ([]byte, error) {
	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.objectKey(handle)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("%w: s3 get %s: %v", interfaces.ErrBackendUnavailable, handle, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3 object: %w", err)
	}
	return data, nil
}

// Available checks the bucket responds.
func (b *S3Backend) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Debug("S3 backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns an identifier for logging.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

func (b *S3Backend) objectKey(handle string) string {
	if b.prefix == "" {
		return handle
	}
	return path.Join(b.prefix, handle)
}
