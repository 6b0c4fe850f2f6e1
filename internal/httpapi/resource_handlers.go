package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/audit"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/obs"
)

// Resource is a protected entity as exposed over the API. The payload is
// opaque to the session core; the Ref carries everything the policy needs.
type Resource struct {
	ID      string           `json:"id"`
	Kind    string           `json:"kind"`
	Ref     auth.ResourceRef `json:"-"`
	Payload json.RawMessage  `json:"payload"`
}

// ResourceDirectory resolves resource references for the demo surface.
// The real portal backs this with its file and message tables; tests use
// an in-memory map.
type ResourceDirectory interface {
	Find(ctx context.Context, kind, id string) (*Resource, error)
}

// handleResource serves GET /v1/{files,messages,members}/{id}.
// Every hit goes through the authorization policy; all denials share one
// generic forbidden response.
func (a *API) handleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.directory == nil {
		http.NotFound(w, r)
		return
	}

	kind, id, ok := splitResourcePath(r.URL.Path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	identity, authed := auth.IdentityFromContext(r.Context())
	if !authed {
		unauthorized(w, r)
		return
	}

	res, err := a.directory.Find(r.Context(), kind, id)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "resource not found")
		case errors.Is(err, auth.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	decision := auth.Authorize(identity, auth.ActionRead, res.Ref)
	if !decision.Allowed {
		obs.ObserveDenial(string(decision.Reason))
		_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{
			"resource_kind": kind,
			"resource_id":   id,
			"reason":        string(decision.Reason),
		})
		forbidden(w, r)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func splitResourcePath(path string) (kind, id string, ok bool) {
	switch {
	case strings.HasPrefix(path, "/v1/files/"):
		kind = "file"
		id = strings.TrimPrefix(path, "/v1/files/")
	case strings.HasPrefix(path, "/v1/messages/"):
		kind = "message"
		id = strings.TrimPrefix(path, "/v1/messages/")
	case strings.HasPrefix(path, "/v1/members/"):
		kind = "member"
		id = strings.TrimPrefix(path, "/v1/members/")
	default:
		return "", "", false
	}
	id = strings.Trim(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return kind, id, true
}
