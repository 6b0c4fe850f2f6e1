package auth

// DenyReason is the internal reason attached to a denial. It is recorded
// for audit and metrics; the transport layer collapses every denial into
// one generic forbidden response.
type DenyReason string

const (
	DenyWrongTenant    DenyReason = "wrong_tenant"
	DenyNotOwner       DenyReason = "not_owner"
	DenyTenantInactive DenyReason = "tenant_inactive"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Authorize decides whether the identity may perform the action on the
// referenced resource. It is a pure function of the validated identity and
// the resource's declared tenant/owner; it never touches the store.
//
//	role         same tenant                cross tenant   own record
//	admin        allow                      allow          allow
//	client_owner allow                      deny           allow
//	user         allow iff owner/addressee  deny           allow
func Authorize(identity Identity, action Action, ref ResourceRef) Decision {
	switch identity.Role {
	case RoleAdmin:
		return allow()

	case RoleClientOwner:
		if !identity.TenantActive {
			return deny(DenyTenantInactive)
		}
		if ref.TenantID != identity.TenantID {
			return deny(DenyWrongTenant)
		}
		return allow()

	case RoleUser:
		if !identity.TenantActive {
			return deny(DenyTenantInactive)
		}
		if ref.TenantID != identity.TenantID {
			return deny(DenyWrongTenant)
		}
		if ref.OwnerID == identity.UserID {
			return allow()
		}
		for _, addressee := range ref.Addressees {
			if addressee == identity.UserID {
				return allow()
			}
		}
		return deny(DenyNotOwner)
	}
	// Unknown role values never authorize anything.
	return deny(DenyNotOwner)
}
