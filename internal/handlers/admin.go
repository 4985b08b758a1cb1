package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"comfygate/internal/models"
	"comfygate/internal/repository"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "an unexpected error occurred"})
		return
	}

	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":          user.ID,
			"email":       user.Email,
			"displayName": user.DisplayName,
			"role":        user.Role,
			"status":      user.Status,
			"createdAt":   user.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) AdminUpdateUserRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "role is required"})
		return
	}

	role := models.UserRole(req.Role)
	switch role {
	case models.UserRoleViewer, models.UserRoleEditor, models.UserRoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "role must be one of viewer, editor, admin"})
		return
	}

	userID := c.Param("userId")
	if err := h.users.UpdateRole(c.Request.Context(), userID, role); err != nil {
		if err == repository.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("admin role update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "an unexpected error occurred"})
		return
	}

	h.log.Info().Str("user_id", userID).Str("role", string(role)).Msg("user role updated")
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}
