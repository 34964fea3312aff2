package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cms-backend/internal/domain"
	"cms-backend/internal/service"
)

type createPostRequest struct {
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Tags    []string          `json:"tags"`
	Status  domain.PostStatus `json:"status"`
}

type updatePostRequest struct {
	Title   *string            `json:"title"`
	Content *string            `json:"content"`
	Tags    []string           `json:"tags"`
	Status  *domain.PostStatus `json:"status"`
}

type createCommentRequest struct {
	Content         string `json:"content"`
	ParentCommentID string `json:"parentCommentId"`
}

type postResponse struct {
	PostID       string            `json:"postId"`
	UserID       string            `json:"userId"`
	Username     string            `json:"username"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Tags         []string          `json:"tags"`
	PostAvatarID string            `json:"postAvatarId,omitempty"`
	Status       domain.PostStatus `json:"status"`
	CommentCount int               `json:"commentCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type commentResponse struct {
	CommentID       string    `json:"commentId"`
	PostID          string    `json:"postId"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	Content         string    `json:"content"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	CommentAvatarID string    `json:"commentAvatarId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (h *Handler) listPosts(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	page, err := h.svc.Posts.List(c.Request.Context(), limit, c.Query("lastKey"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{"posts": postsToResponse(page.Posts)}
	if page.LastKey != "" {
		resp["lastKey"] = page.LastKey
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.svc.Posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": postToResponse(*post)})
}

func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.svc.Posts.Create(c.Request.Context(), mustClaim(c), service.PostInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Status:  req.Status,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": postToResponse(*post)})
}

func (h *Handler) updatePost(c *gin.Context) {
	var req updatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := h.svc.Posts.Update(c.Request.Context(), mustClaim(c), c.Param("id"), service.PostPatch{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Status:  req.Status,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": postToResponse(*post)})
}

func (h *Handler) deletePost(c *gin.Context) {
	postID := c.Param("id")
	if err := h.svc.Posts.Delete(c.Request.Context(), mustClaim(c), postID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post and associated comments deleted successfully", "postId": postID})
}

func (h *Handler) listComments(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	page, err := h.svc.Comments.List(c.Request.Context(), c.Param("id"), limit, c.Query("lastKey"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var nextKey any
	if page.NextKey != "" {
		nextKey = page.NextKey
	}
	c.JSON(http.StatusOK, gin.H{
		"comments": commentsToResponse(page.Comments),
		"count":    len(page.Comments),
		"nextKey":  nextKey,
	})
}

func (h *Handler) createComment(c *gin.Context) {
	var req createCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.svc.Comments.Create(c.Request.Context(), mustClaim(c), c.Param("id"), req.Content, req.ParentCommentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment created successfully", "comment": commentToResponse(*comment)})
}

func (h *Handler) deleteComment(c *gin.Context) {
	commentID := c.Param("commentId")
	if err := h.svc.Comments.Delete(c.Request.Context(), mustClaim(c), c.Param("id"), commentID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully", "commentId": commentID})
}

// queryLimit parses the optional limit parameter; 0 selects the service default.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func postToResponse(p domain.Post) postResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		PostID:       p.PostID,
		UserID:       p.UserID,
		Username:     p.Username,
		Title:        p.Title,
		Content:      p.Content,
		Tags:         tags,
		PostAvatarID: p.PostAvatarID,
		Status:       p.Status,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func postsToResponse(posts []domain.Post) []postResponse {
	resp := make([]postResponse, len(posts))
	for i := range posts {
		resp[i] = postToResponse(posts[i])
	}
	return resp
}

func commentToResponse(c domain.Comment) commentResponse {
	return commentResponse{
		CommentID:       c.CommentID,
		PostID:          c.PostID,
		UserID:          c.UserID,
		Username:        c.Username,
		Content:         c.Content,
		ParentCommentID: c.ParentCommentID,
		CommentAvatarID: c.CommentAvatarID,
		CreatedAt:       c.CreatedAt,
	}
}

func commentsToResponse(comments []domain.Comment) []commentResponse {
	resp := make([]commentResponse, len(comments))
	for i := range comments {
		resp[i] = commentToResponse(comments[i])
	}
	return resp
}
