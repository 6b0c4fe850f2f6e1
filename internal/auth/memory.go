package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and local development.
// It applies the same error contract as the Postgres implementation.
type MemoryStore struct {
	mu       sync.Mutex
	tenants  map[string]Tenant
	users    map[string]User
	byEmail  map[string]string
	refresh  map[string]RefreshTokenRecord
	failWith error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]Tenant),
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		refresh: make(map[string]RefreshTokenRecord),
	}
}

// FailWith makes every subsequent call return err until reset with nil.
// Tests use it to exercise the ErrUnavailable paths.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryStore) Tenants(context.Context) TenantStore { return (*memTenants)(m) }

func (m *MemoryStore) Users(context.Context) UserStore { return (*memUsers)(m) }

func (m *MemoryStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memRefresh)(m) }

// Tenants -------------------------------------------------------------------

type memTenants MemoryStore

func (m *memTenants) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if _, ok := m.tenants[t.ID]; ok {
		return ErrConflict
	}
	if t.Status == "" {
		t.Status = TenantStatusActive
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	m.tenants[t.ID] = *t
	return nil
}

func (m *memTenants) Find(_ context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memTenants) List(_ context.Context) ([]*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		cp := t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTenants) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	t, ok := m.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	m.tenants[id] = t
	return nil
}

// Users ---------------------------------------------------------------------

type memUsers MemoryStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	key := strings.ToLower(u.Email)
	if _, ok := m.byEmail[key]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	m.byEmail[key] = u.ID
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *memUsers) ListByTenant(_ context.Context, tenantID string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			cp := u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return nil
}

func (m *memUsers) BumpTokenSeq(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	u.TokenSeq++
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return u.TokenSeq, nil
}

// Refresh tokens ------------------------------------------------------------

type memRefresh MemoryStore

func (m *memRefresh) Create(_ context.Context, rec *RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.refresh[rec.ID] = *rec
	return nil
}

func (m *memRefresh) Find(_ context.Context, id string) (*RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	rec, ok := m.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *memRefresh) Consume(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	rec, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Revoked {
		return ErrTokenRevoked
	}
	rec.Revoked = true
	m.refresh[id] = rec
	return nil
}

func (m *memRefresh) MarkRevoked(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	rec, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	rec.Revoked = true
	m.refresh[id] = rec
	return nil
}

func (m *memRefresh) MarkRevokedByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for id, rec := range m.refresh {
		if rec.UserID == userID {
			rec.Revoked = true
			m.refresh[id] = rec
		}
	}
	return nil
}
