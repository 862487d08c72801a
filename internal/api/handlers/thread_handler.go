package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yooventa/tubetalk/internal/services"
	"github.com/yooventa/tubetalk/internal/utils"
)

type ThreadHandler struct {
	ingest  services.IngestService
	history services.HistoryService
}

func NewThreadHandler(ingest services.IngestService, history services.HistoryService) *ThreadHandler {
	return &ThreadHandler{ingest: ingest, history: history}
}

type CreateThreadRequest struct {
	// VideoURL creates a single-video thread; VideoURLs takes precedence
	// when both are set.
	VideoURL  string   `json:"video_url"`
	VideoURLs []string `json:"video_urls"`
	Title     string   `json:"title"`
}

func (h *ThreadHandler) Create(c *gin.Context) {
	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ThreadHandler.Create", "invalid request body", err))
		return
	}

	urls := req.VideoURLs
	if len(urls) == 0 && req.VideoURL != "" {
		urls = []string{req.VideoURL}
	}

	thread, err := h.ingest.CreateThread(c.Request.Context(), urls, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (h *ThreadHandler) List(c *gin.Context) {
	threads, err := h.history.ListThreads(c.Request.Context(), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *ThreadHandler) Get(c *gin.Context) {
	thread, err := h.history.GetThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	if err := h.history.DeleteThread(c.Request.Context(), c.Param("thread_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages returns the full history of a thread in append order.
func (h *ThreadHandler) Messages(c *gin.Context) {
	threadID := c.Param("thread_id")
	msgs, err := h.history.List(c.Request.Context(), threadID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"thread_id": threadID,
		"messages":  msgs,
	})
}
