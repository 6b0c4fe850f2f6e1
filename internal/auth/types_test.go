package auth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRoleWireNames(t *testing.T) {
	for role, name := range map[Role]string{
		RoleAdmin:       "admin",
		RoleClientOwner: "client_owner",
		RoleUser:        "user",
	} {
		if role.String() != name {
			t.Errorf("%d: String() = %q, want %q", role, role.String(), name)
		}
		parsed, err := ParseRole(name)
		if err != nil || parsed != role {
			t.Errorf("ParseRole(%q) = (%v, %v)", name, parsed, err)
		}
	}

	if _, err := ParseRole("superuser"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRoleJSONRoundTrip(t *testing.T) {
	type doc struct {
		Role Role `json:"role"`
	}
	data, err := json.Marshal(doc{Role: RoleClientOwner})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"role":"client_owner"}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var out doc
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Role != RoleClientOwner {
		t.Fatalf("role did not round-trip: %v", out.Role)
	}

	if err := json.Unmarshal([]byte(`{"role":"superuser"}`), &out); err == nil {
		t.Fatal("unknown role should fail to decode")
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	data, err := json.Marshal(User{ID: "u-1", PasswordHash: "hash", TokenSeq: 5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["password_hash"]; ok {
		t.Fatal("password hash leaked into JSON")
	}
	for k := range raw {
		if k == "token_seq" {
			t.Fatal("token sequence leaked into JSON")
		}
	}
}
