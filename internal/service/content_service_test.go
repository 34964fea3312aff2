package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/internal/auth"
	"cms-backend/internal/domain"
)

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	users := newUsers(t, s)
	alice := activeUser(t, users, "alice")
	bob := activeUser(t, users, "bob")
	posts := NewPostService(s.posts, s.users)

	_, err := posts.Create(ctx, alice, PostInput{Title: " ", Content: "x"})
	assert.ErrorIs(t, err, ErrPostFieldsRequired)
	_, err = posts.Create(ctx, alice, PostInput{Title: "t", Content: "c", Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidPostStatus)

	p, err := posts.Create(ctx, alice, PostInput{Title: "Hello", Content: "World", Tags: []string{"go", " ", "cms"}})
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, []string{"go", "cms"}, p.Tags)
	assert.Equal(t, domain.PostStatusPublished, p.Status)
	assert.Zero(t, p.CommentCount)

	title := "Changed"
	_, err = posts.Update(ctx, bob, p.PostID, PostPatch{Title: &title})
	assert.ErrorIs(t, err, ErrPostEditForbidden)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	draft := domain.PostStatusDraft
	updated, err := posts.Update(ctx, alice, p.PostID, PostPatch{Title: &title, Status: &draft})
	require.NoError(t, err)
	assert.Equal(t, "Changed", updated.Title)
	assert.Equal(t, "World", updated.Content)
	assert.Equal(t, domain.PostStatusDraft, updated.Status)

	empty := ""
	_, err = posts.Update(ctx, alice, p.PostID, PostPatch{Content: &empty})
	assert.ErrorIs(t, err, ErrPostFieldsRequired)

	// foreign delete is refused, own delete succeeds, then the post is gone
	assert.ErrorIs(t, posts.Delete(ctx, bob, p.PostID), ErrPostDeleteForbidden)
	require.NoError(t, posts.Delete(ctx, alice, p.PostID))
	assert.ErrorIs(t, posts.Delete(ctx, alice, p.PostID), ErrPostNotFound)
	_, err = posts.Get(ctx, p.PostID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = posts.Get(ctx, "")
	assert.ErrorIs(t, err, ErrPostIDRequired)
}

func TestPostListPages(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	alice := activeUser(t, newUsers(t, s), "alice")
	posts := NewPostService(s.posts, s.users)

	for i := 0; i < 5; i++ {
		_, err := posts.Create(ctx, alice, PostInput{Title: fmt.Sprintf("post %d", i), Content: "c"})
		require.NoError(t, err)
	}

	page, err := posts.List(ctx, 3, "")
	require.NoError(t, err)
	require.Len(t, page.Posts, 3)
	assert.Equal(t, "post 4", page.Posts[0].Title)
	require.NotEmpty(t, page.LastKey)

	page, err = posts.List(ctx, 3, page.LastKey)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)
	assert.Empty(t, page.LastKey)

	_, err = posts.List(ctx, 0, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, DefaultPostPageSize, pageSize(0, DefaultPostPageSize))
	assert.Equal(t, DefaultCommentPageSize, pageSize(-3, DefaultCommentPageSize))
	assert.Equal(t, MaxPageSize, pageSize(500, DefaultPostPageSize))
	assert.Equal(t, 7, pageSize(7, DefaultPostPageSize))
}

func TestCommentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	users := newUsers(t, s)
	alice := activeUser(t, users, "alice")
	bob := activeUser(t, users, "bob")
	posts := NewPostService(s.posts, s.users)
	comments := NewCommentService(s.comments, s.posts, s.users)

	p, err := posts.Create(ctx, alice, PostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = comments.Create(ctx, bob, p.PostID, "  ", "")
	assert.ErrorIs(t, err, ErrCommentContentRequired)
	_, err = comments.Create(ctx, bob, "missing", "hi", "")
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = comments.Create(ctx, bob, p.PostID, "hi", "missing")
	assert.ErrorIs(t, err, ErrParentCommentNotFound)

	root, err := comments.Create(ctx, bob, p.PostID, "first", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", root.Username)
	reply, err := comments.Create(ctx, alice, p.PostID, "reply", root.CommentID)
	require.NoError(t, err)
	assert.Equal(t, root.CommentID, reply.ParentCommentID)

	got, err := posts.Get(ctx, p.PostID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)

	page, err := comments.List(ctx, p.PostID, 0, "")
	require.NoError(t, err)
	require.Len(t, page.Comments, 2)
	assert.Equal(t, root.CommentID, page.Comments[0].CommentID)
	assert.Empty(t, page.NextKey)

	assert.ErrorIs(t, comments.Delete(ctx, alice, p.PostID, root.CommentID), ErrCommentDeleteForbidden)
	require.NoError(t, comments.Delete(ctx, bob, p.PostID, root.CommentID))
	assert.ErrorIs(t, comments.Delete(ctx, bob, p.PostID, root.CommentID), ErrCommentNotFound)

	got, err = posts.Get(ctx, p.PostID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)

	// deleting the post takes the remaining comments with it
	require.NoError(t, posts.Delete(ctx, alice, p.PostID))
	page, err = comments.List(ctx, p.PostID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Comments)
}

func TestCommentOnOtherPostsParent(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	alice := activeUser(t, newUsers(t, s), "alice")
	posts := NewPostService(s.posts, s.users)
	comments := NewCommentService(s.comments, s.posts, s.users)

	p1, err := posts.Create(ctx, alice, PostInput{Title: "one", Content: "c"})
	require.NoError(t, err)
	p2, err := posts.Create(ctx, alice, PostInput{Title: "two", Content: "c"})
	require.NoError(t, err)

	c1, err := comments.Create(ctx, alice, p1.PostID, "on one", "")
	require.NoError(t, err)
	_, err = comments.Create(ctx, alice, p2.PostID, "cross reply", c1.CommentID)
	assert.ErrorIs(t, err, ErrParentCommentNotFound)
}
