package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yooventa/tubetalk/internal/services"
)

type VideoHandler struct {
	ingest services.IngestService
}

func NewVideoHandler(ingest services.IngestService) *VideoHandler {
	return &VideoHandler{ingest: ingest}
}

func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.ingest.GetVideo(c.Request.Context(), c.Param("video_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}
