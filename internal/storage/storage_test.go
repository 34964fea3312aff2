package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/internal/avatar"
)

type fakeS3 struct {
	S3API
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestAvatarMirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	mirror := NewAvatarMirror(NewS3Service(client), "cms-bucket", "/avatars/")

	img := avatar.Image{ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	require.NoError(t, mirror.PutAvatar(ctx, "u1", "a1", img))

	assert.Equal(t, "avatars/u1/a1.jpg", mirror.Key("u1", "a1", "jpg"))
	assert.Equal(t, img.Data, client.objects["cms-bucket/avatars/u1/a1.jpg"])
	assert.Equal(t, "image/jpeg", client.types["cms-bucket/avatars/u1/a1.jpg"])

	require.NoError(t, mirror.DeleteAvatar(ctx, "u1", "a1", "image/jpeg"))
	assert.Empty(t, client.objects)
}

func TestS3ServiceValidation(t *testing.T) {
	svc := NewS3Service(newFakeS3())
	ctx := context.Background()

	_, err := svc.PutObject(ctx, "", "k", "image/png", nil)
	assert.Error(t, err)
	_, err = svc.PutObject(ctx, "b", "/", "image/png", nil)
	assert.Error(t, err)
	assert.Error(t, svc.DeleteObject(ctx, "", "k"))

	loc, err := svc.PutObject(ctx, "b", "/x/y.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "s3://b/x/y.png", loc)
}

func TestS3ServiceUploadError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	_, err := NewS3Service(client).PutObject(context.Background(), "b", "k", "image/gif", []byte("gif"))
	assert.ErrorContains(t, err, "access denied")
}
