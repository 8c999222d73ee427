package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/citadental/clinic-booking/internal/booking"
)

// The identity provider sits in front of this service and forwards the
// authenticated caller as headers; the core trusts them as-is.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type identityKeyType struct{}

var identityKey identityKeyType

type identity struct {
	userID uuid.UUID
	role   booking.Role
}

// IdentityMiddleware parses the forwarded identity headers into the
// request context. Requests without an identity pass through; handlers
// that need one reject them.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get(headerUserID)
		rawRole := r.Header.Get(headerUserRole)
		if rawID == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_identity", "X-User-ID must be a valid UUID")
			return
		}
		role := booking.Role(rawRole)
		if role != booking.RoleDoctor && role != booking.RolePatient {
			writeError(w, http.StatusUnauthorized, "invalid_identity", "X-User-Role must be doctor or patient")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity{userID: id, role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerIdentity(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	return id, ok
}

// requireRole extracts the caller and enforces their role, writing the
// error response itself on failure.
func requireRole(w http.ResponseWriter, r *http.Request, role booking.Role) (uuid.UUID, bool) {
	id, ok := callerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "identity headers missing")
		return uuid.Nil, false
	}
	if id.role != role {
		writeError(w, http.StatusForbidden, "wrong_role", "caller role cannot perform this operation")
		return uuid.Nil, false
	}
	return id.userID, true
}

func requireCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := callerIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "identity headers missing")
		return uuid.Nil, false
	}
	return id.userID, true
}
