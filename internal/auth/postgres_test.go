package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGFindUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "email", "display_name", "password_hash", "role", "token_seq", "created_at", "updated_at"}).
		AddRow("u-1", "t-1", "alice@acme.example", "Alice", "hash", "user", int64(3), now, now)
	mock.ExpectQuery("select .* from users where lower\\(email\\)=lower\\(\\$1\\)").
		WithArgs("alice@acme.example").
		WillReturnRows(rows)

	u, err := store.Users(context.Background()).FindByEmail(context.Background(), "alice@acme.example")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u-1" || u.TenantID != "t-1" || u.Role != RoleUser || u.TokenSeq != 3 {
		t.Fatalf("unexpected user: %+v", u)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGFindUserMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from users where id=\\$1").
		WithArgs("u-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.Users(context.Background()).Find(context.Background(), "u-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGOutageMapsToUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from users").
		WillReturnError(context.DeadlineExceeded)

	_, err := store.Users(context.Background()).Find(context.Background(), "u-1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPGBumpTokenSeq(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("update users set token_seq = token_seq \\+ 1.*returning token_seq").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"token_seq"}).AddRow(int64(8)))

	seq, err := store.Users(context.Background()).BumpTokenSeq(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("BumpTokenSeq: %v", err)
	}
	if seq != 8 {
		t.Fatalf("unexpected seq: %d", seq)
	}
}

func TestPGConsumeRefreshToken(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	// Fresh token flips revoked on the first call.
	mock.ExpectExec("update refresh_tokens set revoked = true where id=\\$1 and revoked = false").
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RefreshTokens(ctx).Consume(ctx, "jti-1"); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	// Second call affects zero rows; the existence probe reports a replay.
	mock.ExpectExec("update refresh_tokens set revoked = true where id=\\$1 and revoked = false").
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select true from refresh_tokens where id=\\$1").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"true"}).AddRow(true))

	if err := store.RefreshTokens(ctx).Consume(ctx, "jti-1"); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replay: expected ErrTokenRevoked, got %v", err)
	}

	// Unknown token: zero rows and no matching row at all.
	mock.ExpectExec("update refresh_tokens set revoked = true where id=\\$1 and revoked = false").
		WithArgs("jti-unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select true from refresh_tokens where id=\\$1").
		WithArgs("jti-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"true"}))

	if err := store.RefreshTokens(ctx).Consume(ctx, "jti-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown: expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGMarkRevokedByUser(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("update refresh_tokens set revoked = true where user_id=\\$1").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := store.RefreshTokens(ctx).MarkRevokedByUser(ctx, "u-1"); err != nil {
		t.Fatalf("MarkRevokedByUser: %v", err)
	}
}

func TestPGSetTenantStatus(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("update tenants set status=\\$2").
		WithArgs("t-1", TenantStatusInactive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Tenants(ctx).SetStatus(ctx, "t-1", TenantStatusInactive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	mock.ExpectExec("update tenants set status=\\$2").
		WithArgs("t-missing", TenantStatusInactive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Tenants(ctx).SetStatus(ctx, "t-missing", TenantStatusInactive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
