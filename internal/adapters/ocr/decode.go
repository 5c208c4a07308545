package ocr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eito54/grosoq/internal/domain/model"
)

// screenPayload is the JSON object the model is asked to return.
type screenPayload struct {
	IsResultScreen *bool                   `json:"isResultScreen"`
	Results        []model.RawPlayerResult `json:"results"`
}

// decodeJSON unmarshals content into target, retrying once with markdown
// fences and surrounding prose stripped.
func decodeJSON(content string, target interface{}) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSON(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload: %s)", err, snippet(sanitized))
	}
	return nil
}

func sanitizeJSON(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// parseScreen turns model output into validated rows. A bare JSON array is
// accepted as the results list. Rows that fail validation are dropped and
// returned separately so the caller can log them.
func parseScreen(content string, validate *validator.Validate) ([]model.RawPlayerResult, []error, error) {
	var payload screenPayload
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if strings.HasPrefix(trimmed, "[") {
		if err := decodeJSON(trimmed, &payload.Results); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else if err := decodeJSON(content, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if payload.IsResultScreen != nil && !*payload.IsResultScreen {
		return nil, nil, ErrNotResultScreen
	}

	var (
		rows    = make([]model.RawPlayerResult, 0, len(payload.Results))
		dropped []error
	)
	for i, r := range payload.Results {
		if err := validate.Struct(r); err != nil {
			dropped = append(dropped, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) > model.MaxBatchSize {
		dropped = append(dropped, fmt.Errorf("%d rows beyond the first %d ignored", len(rows)-model.MaxBatchSize, model.MaxBatchSize))
		rows = rows[:model.MaxBatchSize]
	}
	if len(rows) == 0 {
		return nil, dropped, ErrNotResultScreen
	}
	return rows, dropped, nil
}
