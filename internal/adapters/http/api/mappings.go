package api

import (
	"net/http"

	"github.com/eito54/grosoq/internal/domain/model"
)

// MappingsHandler serves the learned player-to-team mapping.
type MappingsHandler struct {
	deps Dependencies
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(deps Dependencies) *MappingsHandler {
	return &MappingsHandler{deps: deps}
}

type selfPlayerResponse struct {
	Player *model.SelfPlayerRecord `json:"player"`
}

// HandleList handles GET /mappings.
func (h *MappingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Mappings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleReset handles DELETE /mappings. It also forgets the self player.
func (h *MappingsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ResetMappings(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelfPlayer handles GET /self-player.
func (h *MappingsHandler) HandleSelfPlayer(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.SelfPlayer(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selfPlayerResponse{Player: rec})
}
