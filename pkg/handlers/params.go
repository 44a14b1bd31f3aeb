package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/auth"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
)

// ParseMemberID extracts and validates the member ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: mid
func ParseMemberID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue("mid")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Debug("Invalid member ID in path", zap.String("value", raw))
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_member_id", "Invalid member ID format"); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional UUID query parameter. Returns nil when the
// parameter is absent; writes a 400 response and returns ok=false when it is
// present but malformed.
func QueryUUID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name+" format"); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
		return nil, false
	}
	return &id, true
}

// QueryInt parses an optional integer query parameter, returning def when
// absent or unparsable.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// RequestActor resolves the acting operator from the request context.
// Writes a 401 response and returns ok=false when no valid actor is present.
func RequestActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
		return models.Actor{}, false
	}
	return actor, true
}
