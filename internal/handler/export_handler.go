package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batch-extractor-bot/internal/service"
	"github.com/noah-isme/batch-extractor-bot/pkg/response"
)

type downloadResolver interface {
	ResolveDownload(token string) (*service.ExportDownload, error)
	MarkDelivered(relPath string)
}

// ExportHandler serves generated reports behind signed tokens.
type ExportHandler struct {
	exports downloadResolver
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports downloadResolver) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a generated report
// @Description Streams the report once, after which it is scheduled for deletion
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, download.Size, download.Format.MimeType(), download.File, nil)

	if !c.IsAborted() {
		h.exports.MarkDelivered(download.RelPath)
	}
}
