package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectAPI is the subset of *s3.Client used by S3.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores each key as one object: s3://bucket/prefix+key.json.
type S3 struct {
	api    ObjectAPI
	bucket string
	prefix string
}

// NewS3 returns a store writing to bucket under prefix.
func NewS3(api ObjectAPI, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3) objectKey(key string) string {
	return s.prefix + key + ".json"
}

// Get downloads the object for key; NoSuchKey maps to ok=false.
func (s *S3) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Set uploads value as the object for key.
func (s *S3) Set(ctx context.Context, key, value string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// Remove deletes the object for key. S3 treats deleting a missing object as success.
func (s *S3) Remove(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}
