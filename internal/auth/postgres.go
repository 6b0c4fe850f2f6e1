package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL via database/sql (pgx stdlib
// driver). Timeouts and cancellations map onto ErrUnavailable so the
// session layer can tell a slow store from a bad credential.
type PGStore struct {
	db *sql.DB
}

// NewPGStore binds the store to an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Tenants(context.Context) TenantStore { return &pgTenants{db: s.db} }

func (s *PGStore) Users(context.Context) UserStore { return &pgUsers{db: s.db} }

func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore { return &pgRefresh{db: s.db} }

// pgError classifies driver failures. Row-level misses are handled by the
// callers; everything that smells like an outage becomes ErrUnavailable.
func pgError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// Tenants -------------------------------------------------------------------

type pgTenants struct{ db *sql.DB }

func (s *pgTenants) Create(ctx context.Context, t *Tenant) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Status == "" {
		t.Status = TenantStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into tenants(id, name, status) values($1,$2,$3)`,
		t.ID, t.Name, t.Status,
	)
	if err != nil {
		return pgError("create tenant", err)
	}
	return nil
}

func (s *pgTenants) Find(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, status, created_at, updated_at from tenants where id=$1`, id)
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, pgError("find tenant", err)
	}
	return &t, nil
}

func (s *pgTenants) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, status, created_at, updated_at from tenants order by created_at asc`)
	if err != nil {
		return nil, pgError("list tenants", err)
	}
	defer rows.Close()

	var res []*Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, pgError("scan tenant", err)
		}
		res = append(res, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("list tenants", err)
	}
	return res, nil
}

func (s *pgTenants) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update tenants set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return pgError("set tenant status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Users ---------------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

const userColumns = `id, tenant_id, email, display_name, password_hash, role, token_seq, created_at, updated_at`

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	var tenantID any
	if u.TenantID != "" {
		tenantID = u.TenantID
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, tenant_id, email, display_name, password_hash, role, token_seq)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, tenantID, u.Email, u.DisplayName, u.PasswordHash, u.Role.String(), u.TokenSeq,
	)
	if err != nil {
		return pgError("create user", err)
	}
	return nil
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u        User
		tenantID sql.NullString
		role     string
	)
	err := row.Scan(&u.ID, &tenantID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&role, &u.TokenSeq, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, pgError("find user", err)
	}
	u.TenantID = tenantID.String
	u.Role, err = ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *pgUsers) ListByTenant(ctx context.Context, tenantID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 order by created_at asc`, tenantID)
	if err != nil {
		return nil, pgError("list users", err)
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		var (
			u      User
			tid    sql.NullString
			roleDB string
		)
		if err := rows.Scan(&u.ID, &tid, &u.Email, &u.DisplayName, &u.PasswordHash,
			&roleDB, &u.TokenSeq, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, pgError("scan user", err)
		}
		u.TenantID = tid.String
		if u.Role, err = ParseRole(roleDB); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		res = append(res, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("list users", err)
	}
	return res, nil
}

func (s *pgUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return pgError("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgUsers) BumpTokenSeq(ctx context.Context, userID string) (int64, error) {
	// Single compare-and-increment statement so concurrent bumps never
	// lose an invalidation.
	row := s.db.QueryRowContext(ctx,
		`update users set token_seq = token_seq + 1, updated_at=now() where id=$1 returning token_seq`,
		userID)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, pgError("bump token seq", err)
	}
	return seq, nil
}

// Refresh tokens ------------------------------------------------------------

type pgRefresh struct{ db *sql.DB }

func (s *pgRefresh) Create(ctx context.Context, rec *RefreshTokenRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, expires_at, created_at, revoked)
		 values($1,$2,$3,$4,$5)`,
		rec.ID, rec.UserID, rec.ExpiresAt, rec.CreatedAt, rec.Revoked,
	)
	if err != nil {
		return pgError("create refresh token", err)
	}
	return nil
}

func (s *pgRefresh) Find(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, expires_at, created_at, revoked from refresh_tokens where id=$1`, id)
	var rec RefreshTokenRecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt, &rec.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, pgError("find refresh token", err)
	}
	return &rec, nil
}

func (s *pgRefresh) Consume(ctx context.Context, id string) error {
	// The `revoked = false` guard makes the flip single-use: the second
	// concurrent consumer affects zero rows.
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where id=$1 and revoked = false`, id)
	if err != nil {
		return pgError("consume refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pgError("consume refresh token", err)
	}
	if n == 0 {
		var exists bool
		row := s.db.QueryRowContext(ctx, `select true from refresh_tokens where id=$1`, id)
		if err := row.Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return pgError("consume refresh token", err)
		}
		return ErrTokenRevoked
	}
	return nil
}

func (s *pgRefresh) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where id=$1`, id)
	if err != nil {
		return pgError("revoke refresh token", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgRefresh) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true where user_id=$1`, userID)
	if err != nil {
		return pgError("revoke user refresh tokens", err)
	}
	return nil
}
