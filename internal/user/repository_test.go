package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nagarseva-api/internal/database"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role", "is_verified", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRepository(database.NewBunDB(sqlDB)), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := repo.Create(context.Background(), NewUser{
		Name:         "Asha",
		Email:        "asha@x.com",
		PasswordHash: "$argon2id$hash",
		Role:         RoleCitizen,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, RoleCitizen, u.Role)
	assert.False(t, u.IsVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), NewUser{Name: "Asha", Email: "asha@x.com", PasswordHash: "h", Role: RoleCitizen})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.Create(context.Background(), NewUser{Name: "Asha", Email: "asha@x.com", PasswordHash: "h", Role: Role("superuser")})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" WHERE \(lower\(email\) = lower\('ASHA@x.com'\)\)`).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(id.String(), "Asha", "Asha@X.com", "h", "admin", false, now, now))

	u, err := repo.GetByEmail(context.Background(), "ASHA@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "Asha@X.com", u.Email)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Equal(t, "Asha", u.Name)
}

func TestGetByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDRejectsCorruptRole(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "users"`).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(id.String(), "Asha", "asha@x.com", "h", "root", true, now, now))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorContains(t, err, "unknown role")
}

func TestMarkVerified(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkVerified(context.Background(), id))

	mock.ExpectExec(`UPDATE "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkVerified(context.Background(), id), ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.True(t, r.IsAdmin())

	r, err = ParseRole("citizen")
	require.NoError(t, err)
	assert.False(t, r.IsAdmin())

	_, err = ParseRole("Admin")
	assert.Error(t, err)
}
