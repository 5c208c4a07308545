package service

import (
	"errors"
	"time"

	"github.com/eito54/grosoq/internal/adapters/ocr"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/metrics"
)

// Error codes carried by a failed Outcome.
const (
	CodeBusy              = "busy"
	CodeNotResultScreen   = "not_result_screen"
	CodeMalformedResponse = "malformed_response"
	CodeTransport         = "transport"
	CodeUnauthorized      = "unauthorized"
	CodeInvalidInput      = "invalid_input"
	CodeInternal          = "internal"
)

// Analysis is the resolved result of one screenshot.
type Analysis struct {
	ID        string                  `json:"id"`
	Mode      model.Mode              `json:"mode"`
	Results   []model.RawPlayerResult `json:"results"`
	Ledger    []model.Standing        `json:"ledger"`
	Cached    bool                    `json:"cached"`
	CreatedAt time.Time               `json:"createdAt"`
}

func (a *Analysis) clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	out.Results = append([]model.RawPlayerResult(nil), a.Results...)
	out.Ledger = append([]model.Standing(nil), a.Ledger...)
	return &out
}

// Outcome is the structured success or failure of an analysis, ready to
// be rendered by a presentation layer.
type Outcome struct {
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Code     string    `json:"code,omitempty"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// NewOutcome wraps the return values of Analyze.
func NewOutcome(a *Analysis, err error) Outcome {
	if err != nil {
		return Outcome{Success: false, Error: err.Error(), Code: ErrorCode(err)}
	}
	return Outcome{Success: true, Analysis: a}
}

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, ocr.ErrNotResultScreen):
		return CodeNotResultScreen
	case errors.Is(err, ocr.ErrMalformedResponse):
		return CodeMalformedResponse
	case errors.Is(err, ocr.ErrUnauthorized), errors.Is(err, ocr.ErrMissingAPIKey):
		return CodeUnauthorized
	case errors.Is(err, ocr.ErrTransport):
		return CodeTransport
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ocr.ErrEmptyImage):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// metricOutcome maps an analysis error onto a metrics outcome label.
func metricOutcome(err error) string {
	switch ErrorCode(err) {
	case "":
		return metrics.OutcomeSuccess
	case CodeBusy:
		return metrics.OutcomeBusy
	case CodeNotResultScreen:
		return metrics.OutcomeNotResultScreen
	case CodeMalformedResponse:
		return metrics.OutcomeMalformed
	case CodeTransport, CodeUnauthorized:
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeError
	}
}
