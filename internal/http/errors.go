package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cms-backend/internal/auth"
	"cms-backend/internal/avatar"
	"cms-backend/internal/service"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMappings is matched in order; specific errors precede the ones they wrap.
var errorMappings = []errorMapping{
	{auth.ErrNoToken, http.StatusUnauthorized, "Unauthorized: No token provided"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "Unauthorized: Invalid token"},

	{service.ErrCredentialsRequired, http.StatusBadRequest, "Username and password are required"},
	{service.ErrUsernameTaken, http.StatusConflict, "Username already exists"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{service.ErrNotActivated, http.StatusForbidden, "User account not activated. Contact administrator."},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{service.ErrInvalidEmail, http.StatusBadRequest, "Invalid email"},
	{service.ErrPasswordsRequired, http.StatusBadRequest, "Missing passwords"},
	{service.ErrPasswordTooShort, http.StatusBadRequest, fmt.Sprintf("New password must be at least %d characters", service.MinPasswordLength)},
	{service.ErrIncorrectPassword, http.StatusUnauthorized, "Incorrect old password"},
	{service.ErrPasswordConflict, http.StatusConflict, "Password was changed concurrently, try again"},

	{avatar.ErrInvalidFormat, http.StatusBadRequest, "Invalid image format"},
	{avatar.ErrTooLarge, http.StatusBadRequest, "Image too large (max 10KB)"},
	{avatar.ErrInvalidImageData, http.StatusBadRequest, "Invalid image data"},
	{avatar.ErrDimensionsExceeded, http.StatusBadRequest, fmt.Sprintf("Image dimensions exceed %dx%d", avatar.MaxDimension, avatar.MaxDimension)},
	{service.ErrAvatarLimit, http.StatusBadRequest, "Max 50 avatars"},
	{service.ErrAvatarIDRequired, http.StatusBadRequest, "Missing avatarId"},
	{service.ErrAvatarNotFound, http.StatusNotFound, "Avatar not found"},
	{service.ErrActiveAvatar, http.StatusConflict, "Cannot delete active avatar"},
	{service.ErrAvatarConflict, http.StatusConflict, "Avatars were changed concurrently, try again"},

	{service.ErrPostIDRequired, http.StatusBadRequest, "Post ID is required"},
	{service.ErrPostNotFound, http.StatusNotFound, "Post not found"},
	{service.ErrPostFieldsRequired, http.StatusBadRequest, "Title and content are required"},
	{service.ErrInvalidPostStatus, http.StatusBadRequest, "Status must be published or draft"},
	{service.ErrPostEditForbidden, http.StatusForbidden, "Forbidden: You can only edit your own posts"},
	{service.ErrPostDeleteForbidden, http.StatusForbidden, "Forbidden: You can only delete your own posts"},
	{service.ErrCommentNotFound, http.StatusNotFound, "Comment not found"},
	{service.ErrCommentContentRequired, http.StatusBadRequest, "Content is required"},
	{service.ErrParentCommentNotFound, http.StatusNotFound, "Parent comment not found"},
	{service.ErrCommentDeleteForbidden, http.StatusForbidden, "Forbidden: You can only delete your own comments"},
	{service.ErrInvalidCursor, http.StatusBadRequest, "Invalid pagination key"},
	{auth.ErrForbidden, http.StatusForbidden, "Forbidden"},
}

// writeError maps err to a status and public message. Anything unmapped is
// logged and reported as an internal error.
func (h *Handler) writeError(c *gin.Context, err error) {
	var unsupported *avatar.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image format: " + unsupported.Format})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.message})
			return
		}
	}

	h.logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
