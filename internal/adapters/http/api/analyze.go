package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	service "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

const imageField = "image"

// AnalyzeHandler handles screenshot uploads.
type AnalyzeHandler struct {
	deps     Dependencies
	maxBytes int64
	logger   logger.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps Dependencies, maxBytes int64, l logger.Logger) *AnalyzeHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if l == nil {
		l = logger.Nop()
	}
	return &AnalyzeHandler{deps: deps, maxBytes: maxBytes, logger: l.Named("analyze")}
}

// HandleAnalyze handles POST /analyze?mode=race|total. The image is either
// the raw request body or the "image" part of a multipart form. The reply
// is always an Outcome.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, err := model.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, service.NewOutcome(nil, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	image, err := readImage(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, service.NewOutcome(nil, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)))
		return
	}

	start := time.Now()
	analysis, err := h.deps.Analyze(ctx, image, mode)
	outcome := service.NewOutcome(analysis, err)
	if err != nil {
		h.logger.Warn(ctx, "analysis failed",
			logger.String("mode", mode.String()),
			logger.String("code", outcome.Code),
			logger.Error(err))
		writeJSON(w, analyzeStatus(outcome.Code), outcome)
		return
	}
	h.logger.Info(ctx, "analysis served",
		logger.String("id", analysis.ID),
		logger.String("mode", mode.String()),
		logger.Int("players", len(analysis.Results)),
		logger.Bool("cached", analysis.Cached),
		logger.Duration("took", time.Since(start)))
	writeJSON(w, http.StatusOK, outcome)
}

// readImage extracts the screenshot bytes from r.
func readImage(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile(imageField)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingImage, err)
		}
		defer file.Close()
		return readAll(file)
	}
	return readAll(r.Body)
}

func readAll(rd io.Reader) ([]byte, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrMissingImage
	}
	return data, nil
}

// analyzeStatus maps an Outcome code to an HTTP status.
func analyzeStatus(code string) int {
	switch code {
	case service.CodeBusy:
		return http.StatusConflict
	case service.CodeNotResultScreen:
		return http.StatusUnprocessableEntity
	case service.CodeInvalidInput:
		return http.StatusBadRequest
	case service.CodeMalformedResponse, service.CodeTransport, service.CodeUnauthorized:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
