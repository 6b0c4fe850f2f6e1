package auth

import (
	"context"
	"errors"
	"testing"
)

const testPassword = "correct horse 1"

// seedPortal populates a memory store with one tenant, its owner, one
// end-user and a platform admin.
func seedPortal(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Tenants(ctx).Create(ctx, &Tenant{ID: "t-acme", Name: "Acme", Status: TenantStatusActive}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := []User{
		{ID: "u-admin", Email: "root@portal.example", DisplayName: "Root", Role: RoleAdmin, PasswordHash: hash},
		{ID: "u-owner", TenantID: "t-acme", Email: "owner@acme.example", DisplayName: "Owner", Role: RoleClientOwner, PasswordHash: hash},
		{ID: "u-alice", TenantID: "t-acme", Email: "alice@acme.example", DisplayName: "Alice", Role: RoleUser, PasswordHash: hash},
	}
	for i := range users {
		if err := store.Users(ctx).Create(ctx, &users[i]); err != nil {
			t.Fatalf("create user %s: %v", users[i].ID, err)
		}
	}
	return store
}

func TestVerifySuccess(t *testing.T) {
	store := seedPortal(t)
	v, err := NewVerifier(store)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	user, identity, err := v.Verify(context.Background(), "Owner@Acme.Example", testPassword)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != "u-owner" {
		t.Fatalf("unexpected user: %s", user.ID)
	}
	if identity.Role != RoleClientOwner || identity.TenantID != "t-acme" || !identity.TenantActive {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	store := seedPortal(t)
	v, _ := NewVerifier(store)
	ctx := context.Background()

	_, _, unknownErr := v.Verify(ctx, "nobody@acme.example", testPassword)
	_, _, wrongErr := v.Verify(ctx, "alice@acme.example", "wrong password 9")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("failure kinds distinguishable: %q vs %q", unknownErr, wrongErr)
	}
}

func TestVerifyRejectsEmptyInput(t *testing.T) {
	store := seedPortal(t)
	v, _ := NewVerifier(store)
	ctx := context.Background()

	cases := [][2]string{
		{"", testPassword},
		{"not-an-email", testPassword},
		{"alice@acme.example", ""},
	}
	for _, c := range cases {
		if _, _, err := v.Verify(ctx, c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("(%q,%q): expected ErrInvalidCredentials, got %v", c[0], c[1], err)
		}
	}
}

func TestVerifyDisabledTenant(t *testing.T) {
	store := seedPortal(t)
	v, _ := NewVerifier(store)
	ctx := context.Background()

	if err := store.Tenants(ctx).SetStatus(ctx, "t-acme", TenantStatusInactive); err != nil {
		t.Fatalf("deactivate tenant: %v", err)
	}

	if _, _, err := v.Verify(ctx, "alice@acme.example", testPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("user: expected ErrAccountDisabled, got %v", err)
	}
	if _, _, err := v.Verify(ctx, "owner@acme.example", testPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("owner: expected ErrAccountDisabled, got %v", err)
	}

	// Admins have no tenant binding and are unaffected.
	if _, _, err := v.Verify(ctx, "root@portal.example", testPassword); err != nil {
		t.Fatalf("admin: %v", err)
	}
}

func TestVerifyAdminHasNoTenant(t *testing.T) {
	store := seedPortal(t)
	v, _ := NewVerifier(store)

	_, identity, err := v.Verify(context.Background(), "root@portal.example", testPassword)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.TenantID != "" || !identity.TenantActive {
		t.Fatalf("admin identity should be tenant-exempt: %+v", identity)
	}
}

func TestVerifyStoreOutageSurfacesUnavailable(t *testing.T) {
	store := seedPortal(t)
	v, _ := NewVerifier(store)
	store.FailWith(ErrUnavailable)

	if _, _, err := v.Verify(context.Background(), "alice@acme.example", testPassword); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
