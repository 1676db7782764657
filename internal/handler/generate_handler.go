package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/export"
	"gemini-extract/internal/normalizer"
	"gemini-extract/internal/service"
	"gemini-extract/pkg/logger"
)

const (
	formPrompt = "prompt"
	formFile   = "file"

	// in-memory part of a multipart form; the rest spills to temp files
	multipartMemory = 32 << 20
)

// Generator runs one generate request.
type Generator interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
}

type GenerateHandler struct {
	svc            Generator
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewGenerateHandler builds the handler. maxUploadBytes <= 0 disables the size cap.
func NewGenerateHandler(svc Generator, maxUploadBytes int64, log *zap.Logger) *GenerateHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerateHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: log}
}

// Generate handles POST /generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		h.writeError(c, apperr.New(apperr.KindBadRequest,
			"Content-Type must be multipart/form-data. Fields: 'prompt' (text) and/or 'file' (image/pdf/text/msg)."))
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, apperr.New(apperr.KindBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		h.writeError(c, apperr.Wrap(apperr.KindBadRequest, "invalid multipart form", err))
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	file, err := readFormFile(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.svc.Generate(ctx, service.GenerateRequest{
		Prompt: c.Request.FormValue(formPrompt),
		File:   file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if res.Tabular {
		c.Header("Content-Disposition", "attachment; filename="+export.FileName)
		c.Header("X-Extracted-Records", strconv.Itoa(res.Records))
		c.Header("X-Recovery-Stage", string(res.Stage))
		c.Data(http.StatusOK, export.ContentType, res.Workbook)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.Text))
}

func readFormFile(c *gin.Context) (*normalizer.UploadedFile, error) {
	header, err := c.FormFile(formFile)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "invalid file field", err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "failed to open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "failed to read uploaded file", err)
	}
	return &normalizer.UploadedFile{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (h *GenerateHandler) writeError(c *gin.Context, err error) {
	status, kind := apperr.Classify(err)
	log := logger.WithTrace(c.Request.Context(), h.logger)

	fields := []zap.Field{zap.Int("status", status), zap.String("kind", string(kind)), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		log.Error("generate failed", fields...)
	} else {
		log.Info("generate rejected", fields...)
	}

	body := gin.H{"error": string(kind), "message": err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		body["upstream_status"] = e.StatusCode
	}
	c.JSON(status, body)
}
