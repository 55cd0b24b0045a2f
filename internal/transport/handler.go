package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/weld-inspector-go/internal/config"
	apperrors "github.com/anime-shed/weld-inspector-go/internal/errors"
	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/service"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

// Error strings of the upload endpoints.
const (
	ErrNoFilePart     = "No file part"
	ErrNoSelectedFile = "No selected file"
	ErrFileTooLarge   = "File too large"
	ErrFileNotFound   = "File not found"
)

// FileField is the multipart field carrying the image.
const FileField = "file"

func NewHandler(svc service.PredictionService, cfg config.ServerConfig) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.POST("/upload/image", uploadImage(svc, cfg.RequestTimeout))
	r.POST("/train", uploadTraining(svc, cfg.RequestTimeout))
	r.GET("/uploads/:filename", processedFrame(svc))

	return r
}

func uploadImage(svc service.PredictionService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		upload, ok := readUpload(c)
		if !ok {
			return
		}

		resp, err := svc.PredictUpload(ctx, upload)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func uploadTraining(svc service.PredictionService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		upload, ok := readUpload(c)
		if !ok {
			return
		}

		resp, err := svc.StoreTrainingSample(ctx, upload)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func processedFrame(svc service.PredictionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, info, err := svc.OpenProcessedFrame(c.Request.Context(), c.Param("filename"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer body.Close()

		c.DataFromReader(http.StatusOK, info.Size, info.ContentType, body, nil)
	}
}

// readUpload extracts the "file" part. It writes the error response itself
// and reports false when the request carries no usable file.
func readUpload(c *gin.Context) (service.Upload, bool) {
	header, err := c.FormFile(FileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(c, http.StatusRequestEntityTooLarge, ErrFileTooLarge, err)
		case errors.Is(err, http.ErrMissingFile) && hasEmptyFilePart(c):
			// multipart stores a part without a file name as a plain value
			respondError(c, http.StatusBadRequest, ErrNoSelectedFile, err)
		default:
			respondError(c, http.StatusBadRequest, ErrNoFilePart, err)
		}
		return service.Upload{}, false
	}
	if header.Filename == "" {
		respondError(c, http.StatusBadRequest, ErrNoSelectedFile, nil)
		return service.Upload{}, false
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrNoFilePart, err)
		return service.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrNoFilePart, err)
		return service.Upload{}, false
	}

	logger.WithFields(logrus.Fields{
		"file": header.Filename,
		"size": len(data),
		"path": c.Request.URL.Path,
	}).Debug("Received upload")

	return service.Upload{
		Name:        header.Filename,
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	}, true
}

func hasEmptyFilePart(c *gin.Context) bool {
	form := c.Request.MultipartForm
	if form == nil {
		return false
	}
	_, ok := form.Value[FileField]
	return ok
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), errorText(err), err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorText(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return http.StatusText(determineStatusCode(err))
}

// respondError logs the cause and answers with the short error text only.
func respondError(c *gin.Context, code int, text string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"error_text":  text,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{Error: text})
}
