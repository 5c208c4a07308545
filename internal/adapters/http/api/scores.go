package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxJSONBody = 4 << 10

// ScoresHandler serves the ledger and its manual edits.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

type scoreRequest struct {
	Score *int `json:"score"`
}

type teamRequest struct {
	Team string `json:"team"`
}

type currentTeamResponse struct {
	Team string `json:"team"`
}

// HandleList handles GET /scores.
func (h *ScoresHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	standings, err := h.deps.Scores(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStandings(w, standings)
}

// HandleReset handles DELETE /scores.
func (h *ScoresHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ResetLedger(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeStandings(w, nil)
}

// HandleSet handles PUT /scores/{team} with body {"score": n}.
func (h *ScoresHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing score", ErrBadRequest))
		return
	}
	standings, err := h.deps.SetTeamScore(r.Context(), r.PathValue("team"), *req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStandings(w, standings)
}

// HandleDelete handles DELETE /scores/{team}.
func (h *ScoresHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	standings, err := h.deps.DeleteTeam(r.Context(), r.PathValue("team"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStandings(w, standings)
}

// HandleCurrentTeam handles GET /current-team.
func (h *ScoresHandler) HandleCurrentTeam(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentTeamResponse{Team: h.deps.CurrentTeam()})
}

// HandlePin handles PUT /current-team with body {"team": name}. An empty
// name clears the override.
func (h *ScoresHandler) HandlePin(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	standings, err := h.deps.PinTeam(r.Context(), req.Team)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStandings(w, standings)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, strings.TrimSpace(err.Error()))
	}
	return nil
}
