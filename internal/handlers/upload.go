package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"comfygate/internal/apperr"
	"comfygate/internal/media/sniffer"
)

type imageUpload struct {
	Data     []byte
	Filename string
	MimeType string
}

// readImageUpload pulls one image file out of a multipart form, enforcing
// the size cap and magic-byte/declared-type agreement. A missing file
// returns (nil, nil) so optional uploads can share the path.
func (h HandlerSet) readImageUpload(c *gin.Context, field string) (*imageUpload, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, nil
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadBytes {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.cfg.MaxUploadBytes))
	}

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "read upload", err)
	}
	if int64(len(data)) > h.cfg.MaxUploadBytes {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.cfg.MaxUploadBytes))
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindValidation, "uploaded file is empty")
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "unsupported image format, expected jpeg, png, gif, or webp")
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header))
	if declared != "" && declared != result.MIME {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("content type mismatch: declared %s, actual %s", declared, result.MIME))
	}

	return &imageUpload{
		Data:     data,
		Filename: header.Filename,
		MimeType: result.MIME,
	}, nil
}
