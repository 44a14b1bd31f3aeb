package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/auth"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/services"
)

// RollbackRequestBody for POST /api/rollback
type RollbackRequestBody struct {
	ChangeID     string `json:"changeId,omitempty"`
	BatchID      string `json:"batchId,omitempty"`
	EntityID     string `json:"entityId,omitempty"`
	RollbackType string `json:"rollbackType"`
}

// RollbackHandler handles rollback candidate discovery and rollback requests.
type RollbackHandler struct {
	candidateService services.CandidateService
	rollbackService  services.RollbackService
	logger           *zap.Logger
}

// NewRollbackHandler creates a new rollback handler.
func NewRollbackHandler(
	candidateService services.CandidateService,
	rollbackService services.RollbackService,
	logger *zap.Logger,
) *RollbackHandler {
	return &RollbackHandler{
		candidateService: candidateService,
		rollbackService:  rollbackService,
		logger:           logger,
	}
}

// RegisterRoutes registers the rollback handler's routes on the given mux.
func (h *RollbackHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/rollback-candidates", authMiddleware.RequireAuth(h.ListCandidates))
	mux.HandleFunc("POST /api/rollback", authMiddleware.RequireAuth(h.Rollback))
}

// ListCandidates handles GET /api/rollback-candidates?entityId=&batchId=&limit=
func (h *RollbackHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	actor, ok := RequestActor(w, r, h.logger)
	if !ok {
		return
	}

	memberID, ok := QueryUUID(w, r, "entityId", h.logger)
	if !ok {
		return
	}
	batchID, ok := QueryUUID(w, r, "batchId", h.logger)
	if !ok {
		return
	}

	filter := models.ChangeFilter{
		MemberID: memberID,
		BatchID:  batchID,
		Limit:    QueryInt(r, "limit", 0),
	}

	candidates, err := h.candidateService.ListCandidates(r.Context(), actor, filter)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if candidates.Changes == nil {
		candidates.Changes = make([]*models.ChangeRecord, 0)
	}

	if err := WriteJSON(w, http.StatusOK, candidates); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rollback handles POST /api/rollback
func (h *RollbackHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	actor, ok := RequestActor(w, r, h.logger)
	if !ok {
		return
	}

	var body RollbackRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondBadRequest(w, "invalid_body", "Request body must be valid JSON")
		return
	}

	req := services.RollbackRequest{Type: services.RollbackType(body.RollbackType)}

	var parseOK bool
	if req.ChangeID, parseOK = parseOptionalUUID(body.ChangeID); !parseOK {
		h.respondBadRequest(w, "invalid_change_id", "Invalid changeId format")
		return
	}
	if req.BatchID, parseOK = parseOptionalUUID(body.BatchID); !parseOK {
		h.respondBadRequest(w, "invalid_batch_id", "Invalid batchId format")
		return
	}
	if req.MemberID, parseOK = parseOptionalUUID(body.EntityID); !parseOK {
		h.respondBadRequest(w, "invalid_entity_id", "Invalid entityId format")
		return
	}

	result, err := h.rollbackService.Rollback(r.Context(), actor, req)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *RollbackHandler) respondBadRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func parseOptionalUUID(raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
