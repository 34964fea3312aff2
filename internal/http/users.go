package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cms-backend/internal/domain"
	"cms-backend/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type avatarRequest struct {
	DataURL string `json:"dataUrl"`
}

type activeAvatarRequest struct {
	AvatarID string `json:"avatarId"`
}

type identityResponse struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type avatarResponse struct {
	AvatarID   string    `json:"avatarId"`
	DataURL    string    `json:"dataUrl"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type profileResponse struct {
	UserID         string           `json:"userId"`
	Username       string           `json:"username"`
	Role           domain.Role      `json:"role,omitempty"`
	Email          string           `json:"email,omitempty"`
	Avatars        []avatarResponse `json:"avatars"`
	ActiveAvatarID string           `json:"activeAvatarId,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Users.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully. Awaiting activation by admin.",
		"userId":  user.UserID,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   res.Token,
		"user": identityResponse{
			UserID:   res.User.UserID,
			Username: res.User.Username,
			Role:     res.Role,
		},
	})
}

func (h *Handler) getProfile(c *gin.Context) {
	user, err := h.svc.Users.Profile(c.Request.Context(), mustClaim(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(user))
}

func (h *Handler) updateEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	email, err := h.svc.Users.UpdateEmail(c.Request.Context(), mustClaim(c).UserID, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email updated", "email": email})
}

func (h *Handler) removeEmail(c *gin.Context) {
	if err := h.svc.Users.RemoveEmail(c.Request.Context(), mustClaim(c).UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email removed successfully"})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.Users.ChangePassword(c.Request.Context(), mustClaim(c).UserID, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (h *Handler) addAvatar(c *gin.Context) {
	var req avatarRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Avatars.Add(c.Request.Context(), mustClaim(c).UserID, req.DataURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"avatar":         avatarToResponse(*a),
		"activeAvatarId": a.AvatarID,
	})
}

func (h *Handler) setActiveAvatar(c *gin.Context) {
	var req activeAvatarRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.Avatars.SetActive(c.Request.Context(), mustClaim(c).UserID, req.AvatarID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Active avatar updated", "avatarId": req.AvatarID})
}

func (h *Handler) deleteAvatar(c *gin.Context) {
	avatarID := c.Param("avatarId")
	if err := h.svc.Avatars.Delete(c.Request.Context(), mustClaim(c).UserID, avatarID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Avatar deleted", "avatarId": avatarID})
}

// getUserAvatarByID answers with null fields when the active avatar is requested but unset.
func (h *Handler) getUserAvatarByID(c *gin.Context) {
	found, err := h.svc.Avatars.Get(c.Request.Context(), c.Param("userId"), c.Param("avatarId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"userId":        found.UserID,
		"username":      found.Username,
		"avatarId":      nil,
		"avatarDataUrl": nil,
	}
	if found.Avatar != nil {
		resp["avatarId"] = found.Avatar.AvatarID
		resp["avatarDataUrl"] = found.Avatar.DataURL
	}
	c.JSON(http.StatusOK, resp)
}

// getUserActiveAvatar answers 404 when the user has no active avatar.
func (h *Handler) getUserActiveAvatar(c *gin.Context) {
	found, err := h.svc.Avatars.Get(c.Request.Context(), c.Param("userId"), service.ActiveAvatarAlias)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if found.Avatar == nil {
		h.writeError(c, service.ErrAvatarNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":        found.UserID,
		"username":      found.Username,
		"avatarDataUrl": found.Avatar.DataURL,
	})
}

func avatarToResponse(a domain.Avatar) avatarResponse {
	return avatarResponse{
		AvatarID:   a.AvatarID,
		DataURL:    a.DataURL,
		UploadedAt: a.UploadedAt,
	}
}

func profileToResponse(u *domain.User) profileResponse {
	role, _ := u.Activation.Role()
	resp := profileResponse{
		UserID:         u.UserID,
		Username:       u.Username,
		Role:           role,
		Email:          u.Email,
		Avatars:        make([]avatarResponse, len(u.Avatars)),
		ActiveAvatarID: u.ActiveAvatarID,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	for i, a := range u.Avatars {
		resp.Avatars[i] = avatarToResponse(a)
	}
	return resp
}
