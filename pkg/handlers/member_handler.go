package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/auth"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// MemberRequest for POST /api/members and PUT /api/members/{mid}.
// Dates use YYYY-MM-DD; parentId is a member UUID.
type MemberRequest struct {
	FirstName       string  `json:"firstName"`
	FatherName      string  `json:"fatherName"`
	GrandfatherName string  `json:"grandfatherName"`
	ParentID        *string `json:"parentId"`
	Gender          string  `json:"gender"`
	BirthDate       *string `json:"birthDate"`
	DeathDate       *string `json:"deathDate"`
	City            string  `json:"city"`
	Phone           string  `json:"phone"`
	Email           string  `json:"email"`
	Status          string  `json:"status"`
	PhotoURL        string  `json:"photoUrl"`
}

// member builds a Member value from the request fields. Field parsing goes
// through the same codec the ledger uses, so a request value that cannot be
// recorded cannot be stored either.
func (req *MemberRequest) member() (*models.Member, error) {
	m := &models.Member{}
	values := map[string]*string{
		models.FieldFirstName:       &req.FirstName,
		models.FieldFatherName:      &req.FatherName,
		models.FieldGrandfatherName: &req.GrandfatherName,
		models.FieldParentID:        req.ParentID,
		models.FieldGender:          &req.Gender,
		models.FieldBirthDate:       req.BirthDate,
		models.FieldDeathDate:       req.DeathDate,
		models.FieldCity:            &req.City,
		models.FieldPhone:           &req.Phone,
		models.FieldEmail:           &req.Email,
		models.FieldStatus:          &req.Status,
		models.FieldPhotoURL:        &req.PhotoURL,
	}
	for _, field := range models.RestorableFields {
		if err := m.SetField(field, values[field]); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
		}
	}
	return m, nil
}

// DeleteMemberRequest for DELETE /api/members/{mid}
type DeleteMemberRequest struct {
	Reason string `json:"reason,omitempty"`
}

// MemberListResponse for GET /api/members
type MemberListResponse struct {
	Members []*models.Member `json:"members"`
	Total   int              `json:"total"`
}

// MemberHistoryResponse for GET /api/members/{mid}/history
type MemberHistoryResponse struct {
	Changes []*models.ChangeRecord `json:"changes"`
	Total   int                    `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// MemberHandler handles family member HTTP requests.
type MemberHandler struct {
	memberService services.MemberService
	logger        *zap.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(memberService services.MemberService, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{
		memberService: memberService,
		logger:        logger,
	}
}

// RegisterRoutes registers the member handler's routes on the given mux.
func (h *MemberHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/members", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/members", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/members/{mid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/members/{mid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/members/{mid}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/members/{mid}/history", authMiddleware.RequireAuth(h.History))
}

// List handles GET /api/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberService.List(r.Context(), QueryInt(r, "limit", 50), QueryInt(r, "offset", 0))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if members == nil {
		members = make([]*models.Member, 0)
	}
	if err := WriteJSON(w, http.StatusOK, MemberListResponse{Members: members, Total: len(members)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/members/{mid}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}

	member, err := h.memberService.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, member); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/members
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := RequestActor(w, r, h.logger)
	if !ok {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	member, err := req.member()
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	created, err := h.memberService.Create(r.Context(), actor, member)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusCreated, created); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/members/{mid}
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := RequestActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	updated, err := req.member()
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	member, err := h.memberService.Update(r.Context(), actor, id, updated)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, member); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/members/{mid}
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := RequestActor(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}

	var req DeleteMemberRequest
	if r.Body != nil {
		// Body is optional for deletes; ignore decode errors on empty bodies.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.memberService.Delete(r.Context(), actor, id, req.Reason); err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/members/{mid}/history
func (h *MemberHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseMemberID(w, r, h.logger)
	if !ok {
		return
	}

	changes, err := h.memberService.History(r.Context(), id, QueryInt(r, "limit", 100))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if changes == nil {
		changes = make([]*models.ChangeRecord, 0)
	}
	if err := WriteJSON(w, http.StatusOK, MemberHistoryResponse{Changes: changes, Total: len(changes)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
