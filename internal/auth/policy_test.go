package auth

import "testing"

func TestAuthorizeMatrix(t *testing.T) {
	admin := Identity{UserID: "u-admin", Role: RoleAdmin, TenantActive: true}
	owner := Identity{UserID: "u-owner", Role: RoleClientOwner, TenantID: "T1", TenantActive: true}
	user := Identity{UserID: "U1", Role: RoleUser, TenantID: "T1", TenantActive: true}

	sameTenantOwn := ResourceRef{TenantID: "T1", OwnerID: "U1"}
	sameTenantOther := ResourceRef{TenantID: "T1", OwnerID: "U2"}
	sameTenantShared := ResourceRef{TenantID: "T1"}
	crossTenant := ResourceRef{TenantID: "T2", OwnerID: "U9"}

	cases := []struct {
		name     string
		identity Identity
		ref      ResourceRef
		allowed  bool
		reason   DenyReason
	}{
		{"admin same tenant", admin, sameTenantOther, true, ""},
		{"admin cross tenant", admin, crossTenant, true, ""},
		{"admin shared", admin, sameTenantShared, true, ""},

		{"owner same tenant", owner, sameTenantOther, true, ""},
		{"owner shared", owner, sameTenantShared, true, ""},
		{"owner cross tenant", owner, crossTenant, false, DenyWrongTenant},

		{"user own record", user, sameTenantOwn, true, ""},
		{"user other record", user, sameTenantOther, false, DenyNotOwner},
		{"user shared record", user, sameTenantShared, false, DenyNotOwner},
		{"user cross tenant", user, crossTenant, false, DenyWrongTenant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Authorize(tc.identity, ActionRead, tc.ref)
			if got.Allowed != tc.allowed {
				t.Fatalf("allowed=%v, want %v", got.Allowed, tc.allowed)
			}
			if !tc.allowed && got.Reason != tc.reason {
				t.Fatalf("reason=%s, want %s", got.Reason, tc.reason)
			}
		})
	}
}

func TestAuthorizeAddressee(t *testing.T) {
	// A message addressed to the caller is reachable even though someone
	// else owns it.
	alice := Identity{UserID: "U1", Role: RoleUser, TenantID: "T1", TenantActive: true}
	message := ResourceRef{TenantID: "T1", OwnerID: "U2", Addressees: []string{"U1"}}

	if got := Authorize(alice, ActionRead, message); !got.Allowed {
		t.Fatalf("expected allow for addressee, got deny(%s)", got.Reason)
	}

	// Addressed to a different user: denied as not-owner.
	other := ResourceRef{TenantID: "T1", OwnerID: "U2", Addressees: []string{"U3"}}
	got := Authorize(alice, ActionRead, other)
	if got.Allowed || got.Reason != DenyNotOwner {
		t.Fatalf("expected Deny(not_owner), got %+v", got)
	}
}

func TestAuthorizeInactiveTenant(t *testing.T) {
	ref := ResourceRef{TenantID: "T1", OwnerID: "U1"}

	for _, identity := range []Identity{
		{UserID: "u-owner", Role: RoleClientOwner, TenantID: "T1", TenantActive: false},
		{UserID: "U1", Role: RoleUser, TenantID: "T1", TenantActive: false},
	} {
		got := Authorize(identity, ActionWrite, ref)
		if got.Allowed || got.Reason != DenyTenantInactive {
			t.Fatalf("%s: expected Deny(tenant_inactive), got %+v", identity.Role, got)
		}
	}

	// Admin identities have no tenant and are exempt.
	admin := Identity{UserID: "u-admin", Role: RoleAdmin, TenantActive: true}
	if got := Authorize(admin, ActionWrite, ref); !got.Allowed {
		t.Fatalf("admin should be exempt, got deny(%s)", got.Reason)
	}
}

func TestAuthorizeIsPure(t *testing.T) {
	identity := Identity{UserID: "U1", Role: RoleUser, TenantID: "T1", TenantActive: true}
	ref := ResourceRef{TenantID: "T1", OwnerID: "U1"}

	first := Authorize(identity, ActionRead, ref)
	for i := 0; i < 100; i++ {
		if got := Authorize(identity, ActionRead, ref); got != first {
			t.Fatalf("decision changed between calls: %+v != %+v", got, first)
		}
	}
}
