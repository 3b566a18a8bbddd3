// Package replica mirrors stored files to an S3-compatible bucket. The local
// directory stays authoritative; the replica is a best-effort off-site copy.
package replica

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/crypto/blake2b"

	"github.com/dmitrijs2005/ezfile/internal/server/models"
)

// DigestMetadataKey is the object metadata key holding the BLAKE2b-256 digest
// of the content.
const DigestMetadataKey = "blake2b"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the bucket coordinates and static credentials
// (MINIO_ROOT_USER / MINIO_ROOT_PASSWORD for a local MinIO).
type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3Replica writes objects under users/<user id>/<file name>.
type S3Replica struct {
	api    objectAPI
	bucket string
}

// NewS3Replica builds the S3 client from static credentials.
func NewS3Replica(ctx context.Context, c Config) (*S3Replica, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("replica bucket is required")
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Replica{api: api, bucket: c.Bucket}, nil
}

// ObjectKey is the bucket key of a user's file.
func ObjectKey(userID models.UserID, name string) string {
	return path.Join("users", userID.String(), name)
}

// Put uploads the file described by rec.
func (r *S3Replica) Put(ctx context.Context, userID models.UserID, rec models.FileRecord) error {
	f, err := os.Open(rec.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", rec.Name, err)
	}
	defer f.Close()

	digest, err := Digest(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", rec.Name, err)
	}

	key := ObjectKey(userID, rec.Name)
	_, err = r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(rec.Size),
		Metadata:      map[string]string{DigestMetadataKey: digest},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete removes the replica of a user's file.
func (r *S3Replica) Delete(ctx context.Context, userID models.UserID, name string) error {
	key := ObjectKey(userID, name)
	_, err := r.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Digest returns the hex BLAKE2b-256 digest of everything read from rd.
func Digest(rd io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, rd); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
