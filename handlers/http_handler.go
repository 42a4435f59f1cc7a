package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/Yulian302/lfusys-services-uploads/services"
	"github.com/gin-gonic/gin"
)

const downloadUrlTTL = 15 * time.Minute

type HttpHandler struct {
	uploadService services.UploadService
	fileService   services.FileService

	logger logging.Logger
}

func NewHttpHandler(uploadSvc services.UploadService, fileSvc services.FileService, l logging.Logger) *HttpHandler {
	return &HttpHandler{
		uploadService: uploadSvc,
		fileService:   fileSvc,
		logger:        l,
	}
}

func (h *HttpHandler) RegisterRoutes(r gin.IRouter) {
	chunk := r.Group("/api/files/chunk")
	chunk.POST("/start", h.startChunkUpload)
	chunk.POST("/upload", h.uploadChunk)
	chunk.POST("/complete/:sessionId", h.completeChunkUpload)
	chunk.POST("/cancel/:sessionId", h.cancelChunkUpload)
	chunk.GET("/status/:sessionId", h.getUploadStatus)

	r.GET("/api/files", h.getFiles)
	r.GET("/api/files/download/:fileId", h.getDownloadUrl)
}

func (h *HttpHandler) startChunkUpload(c *gin.Context) {
	var req models.ChunkUploadStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.uploadService.StartUpload(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) uploadChunk(c *gin.Context) {
	var req models.ChunkUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.uploadService.UploadChunk(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) completeChunkUpload(c *gin.Context) {
	resp, err := h.uploadService.CompleteUpload(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) cancelChunkUpload(c *gin.Context) {
	resp, err := h.uploadService.CancelUpload(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) getUploadStatus(c *gin.Context) {
	resp, err := h.uploadService.GetUploadStatus(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) getFiles(c *gin.Context) {
	resp, err := h.fileService.GetFiles(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HttpHandler) getDownloadUrl(c *gin.Context) {
	url, err := h.fileService.GetDownloadUrl(c.Request.Context(), c.Param("fileId"), downloadUrlTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *HttpHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound),
		errors.Is(err, apperrors.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUnsupportedFormat),
		errors.Is(err, apperrors.ErrInvalidChunkIndex),
		errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrSessionCompleted),
		errors.Is(err, apperrors.ErrSessionCancelled):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return http.StatusConflict
	}

	// storage and merge failures, and anything unrecognized
	return http.StatusInternalServerError
}
