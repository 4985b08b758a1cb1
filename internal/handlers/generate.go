package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"comfygate/internal/middleware"
	"comfygate/internal/service"
)

type generateJSONRequest struct {
	PositivePrompt      string `json:"positivePrompt"`
	NegativePrompt      string `json:"negativePrompt"`
	ReferenceResourceID string `json:"referenceResourceId"`
}

// Generate accepts either multipart form data (with an optional
// referenceImage file) or a JSON body (with an optional referenceResourceId)
// and runs the full generation pipeline.
func (h HandlerSet) Generate(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	params := service.GenerateParams{UserID: user.ID}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		params.PositivePrompt = c.PostForm("positivePrompt")
		params.NegativePrompt = c.PostForm("negativePrompt")
		params.ReferenceResourceID = c.PostForm("referenceResourceId")

		upload, err := h.readImageUpload(c, "referenceImage")
		if err != nil {
			h.respondError(c, err, "reference image rejected")
			return
		}
		if upload != nil {
			params.ReferenceImage = upload.Data
			params.ReferenceFilename = upload.Filename
		}
	} else {
		var req generateJSONRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
			return
		}
		params.PositivePrompt = req.PositivePrompt
		params.NegativePrompt = req.NegativePrompt
		params.ReferenceResourceID = req.ReferenceResourceID
	}

	result, err := h.generation.Generate(c.Request.Context(), params)
	if err != nil {
		h.respondError(c, err, "generation failed")
		return
	}

	h.log.Info().
		Str("job_id", result.JobID).
		Str("resource_id", result.Resource.ID).
		Str("user_id", user.ID).
		Msg("image generated")

	c.JSON(http.StatusCreated, gin.H{
		"message":  "image generated successfully",
		"jobId":    result.JobID,
		"resource": mapResource(result.Resource),
	})
}
