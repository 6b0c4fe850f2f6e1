package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
)

// mapDirectory backs ResourceDirectory with a fixture map keyed kind/id.
type mapDirectory map[string]*Resource

func (d mapDirectory) Find(_ context.Context, kind, id string) (*Resource, error) {
	if res, ok := d[kind+"/"+id]; ok {
		return res, nil
	}
	return nil, auth.ErrNotFound
}

func newTestDirectory() mapDirectory {
	return mapDirectory{
		"file/f-alice": {
			ID: "f-alice", Kind: "file",
			Ref:     auth.ResourceRef{TenantID: "t-acme", OwnerID: "u-alice"},
			Payload: json.RawMessage(`{"name":"report.pdf"}`),
		},
		"file/f-owner": {
			ID: "f-owner", Kind: "file",
			Ref:     auth.ResourceRef{TenantID: "t-acme", OwnerID: "u-owner"},
			Payload: json.RawMessage(`{"name":"contract.pdf"}`),
		},
		"file/f-other-tenant": {
			ID: "f-other-tenant", Kind: "file",
			Ref:     auth.ResourceRef{TenantID: "t-globex", OwnerID: "u-zara"},
			Payload: json.RawMessage(`{"name":"secret.pdf"}`),
		},
		"message/m-to-alice": {
			ID: "m-to-alice", Kind: "message",
			Ref:     auth.ResourceRef{TenantID: "t-acme", OwnerID: "u-owner", Addressees: []string{"u-alice"}},
			Payload: json.RawMessage(`{"subject":"welcome"}`),
		},
		"member/u-alice": {
			ID: "u-alice", Kind: "member",
			Ref:     auth.ResourceRef{TenantID: "t-acme"},
			Payload: json.RawMessage(`{"display_name":"Alice"}`),
		},
		"message/m-to-bob": {
			ID: "m-to-bob", Kind: "message",
			Ref:     auth.ResourceRef{TenantID: "t-acme", OwnerID: "u-owner", Addressees: []string{"u-bob"}},
			Payload: json.RawMessage(`{"subject":"private"}`),
		},
	}
}

func TestResourceAccessByRole(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.withAuth(api.mux)

	alice := loginAs(t, h, "alice@acme.example")
	owner := loginAs(t, h, "owner@acme.example")
	admin := loginAs(t, h, "root@portal.example")

	cases := []struct {
		name  string
		token string
		path  string
		code  int
	}{
		{"user reads own file", alice.AccessToken, "/v1/files/f-alice", http.StatusOK},
		{"user reads someone else's file", alice.AccessToken, "/v1/files/f-owner", http.StatusForbidden},
		{"user reads cross-tenant file", alice.AccessToken, "/v1/files/f-other-tenant", http.StatusForbidden},
		{"user reads message addressed to them", alice.AccessToken, "/v1/messages/m-to-alice", http.StatusOK},
		{"user reads message addressed elsewhere", alice.AccessToken, "/v1/messages/m-to-bob", http.StatusForbidden},

		{"owner reads tenant file", owner.AccessToken, "/v1/files/f-alice", http.StatusOK},
		{"owner reads member listing", owner.AccessToken, "/v1/members/u-alice", http.StatusOK},
		{"user reads member listing", alice.AccessToken, "/v1/members/u-alice", http.StatusForbidden},
		{"owner reads cross-tenant file", owner.AccessToken, "/v1/files/f-other-tenant", http.StatusForbidden},

		{"admin reads any file", admin.AccessToken, "/v1/files/f-other-tenant", http.StatusOK},

		{"missing resource", alice.AccessToken, "/v1/files/f-nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, tc.path, tc.token, nil)
			if rec.Code != tc.code {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.code, rec.Body.String())
			}
			if tc.code == http.StatusForbidden {
				var body struct {
					Error string `json:"error"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error != "forbidden" {
					t.Fatalf("error %q leaks the denial reason", body.Error)
				}
			}
		})
	}
}

func TestResourceRequiresAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.withAuth(api.mux)

	rec := doJSON(t, h, http.MethodGet, "/v1/files/f-alice", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate header")
	}
}

func TestResourceInactiveTenantDenied(t *testing.T) {
	api, store := newTestAPI(t)
	h := api.withAuth(api.mux)
	ctx := context.Background()

	alice := loginAs(t, h, "alice@acme.example")

	if err := store.Tenants(ctx).SetStatus(ctx, "t-acme", auth.TenantStatusInactive); err != nil {
		t.Fatalf("deactivate tenant: %v", err)
	}

	// The existing access token still authenticates, but the policy sees
	// the identity minted at login and still allows until refresh re-reads
	// tenant status. Rotate through refresh to pick up the change.
	rec := doJSON(t, h, http.MethodPost, "/v1/session/refresh", "", refreshRequest{RefreshToken: alice.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d: %s", rec.Code, rec.Body.String())
	}
	var next sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if next.Identity.TenantActive {
		t.Fatal("refresh should carry the deactivated tenant status")
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/files/f-alice", next.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestSplitResourcePath(t *testing.T) {
	cases := []struct {
		path string
		kind string
		id   string
		ok   bool
	}{
		{"/v1/files/f-1", "file", "f-1", true},
		{"/v1/messages/m-1", "message", "m-1", true},
		{"/v1/members/u-1", "member", "u-1", true},
		{"/v1/files/", "", "", false},
		{"/v1/files/a/b", "", "", false},
		{"/v1/other/x", "", "", false},
	}
	for _, tc := range cases {
		kind, id, ok := splitResourcePath(tc.path)
		if kind != tc.kind || id != tc.id || ok != tc.ok {
			t.Errorf("%s: got (%q,%q,%v), want (%q,%q,%v)", tc.path, kind, id, ok, tc.kind, tc.id, tc.ok)
		}
	}
}
