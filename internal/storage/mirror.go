package storage

import (
	"context"
	"path"
	"strings"

	"cms-backend/internal/avatar"
)

// AvatarMirror copies processed avatars to a bucket under
// <prefix>/<userId>/<avatarId>.<ext>.
type AvatarMirror struct {
	store  Service
	bucket string
	prefix string
}

func NewAvatarMirror(store Service, bucket, prefix string) *AvatarMirror {
	return &AvatarMirror{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (m *AvatarMirror) Key(userID, avatarID, ext string) string {
	return path.Join(m.prefix, userID, avatarID+"."+ext)
}

func (m *AvatarMirror) PutAvatar(ctx context.Context, userID, avatarID string, img avatar.Image) error {
	_, err := m.store.PutObject(ctx, m.bucket, m.Key(userID, avatarID, img.Extension()), img.ContentType, img.Data)
	return err
}

func (m *AvatarMirror) DeleteAvatar(ctx context.Context, userID, avatarID, contentType string) error {
	return m.store.DeleteObject(ctx, m.bucket, m.Key(userID, avatarID, avatar.ExtensionFor(contentType)))
}
