package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"comfygate/internal/apperr"
	"comfygate/internal/middleware"
	"comfygate/internal/models"
)

type resourceResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"fileSizeBytes"`
	MimeType  string    `json:"mimeType"`
	Kind      string    `json:"imageType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// The opaque storage name never leaves the server; clients only see the
// display filename.
func mapResource(resource models.Resource) resourceResponse {
	return resourceResponse{
		ID:        resource.ID,
		UserID:    resource.OwnerUserID,
		Filename:  resource.DisplayFilename,
		SizeBytes: resource.SizeBytes,
		MimeType:  resource.MimeType,
		Kind:      string(resource.Kind),
		CreatedAt: resource.CreatedAt,
		UpdatedAt: resource.UpdatedAt,
	}
}

func (h HandlerSet) CreateResource(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	upload, err := h.readImageUpload(c, "image")
	if err != nil {
		h.respondError(c, err, "resource upload rejected")
		return
	}
	if upload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "no image file provided"})
		return
	}

	resource, err := h.resources.Create(c.Request.Context(), user.ID, upload.Data, upload.Filename, upload.MimeType, models.ResourceKindUploaded)
	if err != nil {
		h.respondError(c, err, "resource create failed")
		return
	}

	h.log.Info().Str("resource_id", resource.ID).Str("user_id", user.ID).Msg("resource created")
	c.JSON(http.StatusCreated, gin.H{
		"message":  "image resource created successfully",
		"resource": mapResource(resource),
	})
}

func (h HandlerSet) ListResources(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	var kind models.ResourceKind
	switch filter := c.Query("kind"); filter {
	case "", "all":
	case string(models.ResourceKindUploaded):
		kind = models.ResourceKindUploaded
	case string(models.ResourceKindGenerated):
		kind = models.ResourceKindGenerated
	default:
		h.respondError(c, apperr.New(apperr.KindValidation, "kind must be one of all, uploaded, generated"), "resource list rejected")
		return
	}

	resources, err := h.resources.List(c.Request.Context(), user.ID, kind)
	if err != nil {
		h.respondError(c, err, "resource list failed")
		return
	}

	items := make([]resourceResponse, 0, len(resources))
	for _, resource := range resources {
		items = append(items, mapResource(resource))
	}

	c.JSON(http.StatusOK, gin.H{"resources": items})
}

func (h HandlerSet) ReadResource(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	resource, data, err := h.resources.Read(c.Request.Context(), c.Param("resourceId"), user.ID)
	if err != nil {
		h.respondError(c, err, "resource read failed")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", resource.DisplayFilename))
	c.Data(http.StatusOK, resource.MimeType, data)
}

func (h HandlerSet) UpdateResource(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	upload, err := h.readImageUpload(c, "image")
	if err != nil {
		h.respondError(c, err, "resource update upload rejected")
		return
	}
	if upload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "no image file provided for update"})
		return
	}

	resource, err := h.resources.Update(c.Request.Context(), c.Param("resourceId"), user.ID, upload.Data, upload.Filename, upload.MimeType)
	if err != nil {
		h.respondError(c, err, "resource update failed")
		return
	}

	h.log.Info().Str("resource_id", resource.ID).Str("user_id", user.ID).Msg("resource updated")
	c.JSON(http.StatusOK, gin.H{
		"message":  "resource updated",
		"resource": mapResource(resource),
	})
}

func (h HandlerSet) DeleteResource(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	resourceID := c.Param("resourceId")
	if err := h.resources.Delete(c.Request.Context(), resourceID, user.ID); err != nil {
		h.respondError(c, err, "resource delete failed")
		return
	}

	h.log.Info().Str("resource_id", resourceID).Str("user_id", user.ID).Msg("resource deleted")
	c.Status(http.StatusNoContent)
}
