package kv

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3_Contract(t *testing.T) {
	exerciseStore(t, NewS3(&fakeObjects{objects: map[string]string{}}, "bucket", "kv/"))
}

func TestS3_ObjectLayout(t *testing.T) {
	api := &fakeObjects{objects: map[string]string{}}
	s := NewS3(api, "bucket", "kv/")
	require.NoError(t, s.Set(context.Background(), "site_ads_v1", "[]"))
	assert.Contains(t, api.objects, "bucket/kv/site_ads_v1.json")
}

func TestS3_PutErrorIsWrapped(t *testing.T) {
	boom := errors.New("slow down")
	s := NewS3(&fakeObjects{objects: map[string]string{}, putErr: boom}, "bucket", "")
	err := s.Set(context.Background(), "k", "v")
	assert.ErrorIs(t, err, boom)
}
