package complaint

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nagarseva-api/internal/database"
)

var complaintColumns = []string{
	"id", "title", "description", "location", "urgency", "image_url",
	"status", "anonymous", "user_id", "created_at", "updated_at",
}

var ownerColumns = []string{"owner__id", "owner__name", "owner__email"}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRepository(database.NewBunDB(sqlDB)), mock
}

func sampleComplaint() *Complaint {
	owner := uuid.New()
	now := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	return &Complaint{
		ID:          uuid.New(),
		Title:       "Pothole",
		Description: "Large pothole",
		Location:    "Main St",
		Urgency:     UrgencyHigh,
		Status:      StatusPending,
		OwnerID:     &owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func rowValues(c *Complaint) []driver.Value {
	var ownerID driver.Value
	if c.OwnerID != nil {
		ownerID = c.OwnerID.String()
	}
	return []driver.Value{
		c.ID.String(), c.Title, c.Description, c.Location, string(c.Urgency), c.ImageURL,
		string(c.Status), c.Anonymous, ownerID, c.CreatedAt, c.UpdatedAt,
	}
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO "complaints"`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), sampleComplaint()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleComplaint()

	mock.ExpectQuery(`SELECT .* FROM "complaints" AS "c" WHERE \(c.id = '` + want.ID.String() + `'\)`).
		WillReturnRows(sqlmock.NewRows(complaintColumns).AddRow(rowValues(want)...))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM "complaints"`).WillReturnRows(sqlmock.NewRows(complaintColumns))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryRejectsCorruptRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	bad := sampleComplaint()
	bad.Urgency = "Catastrophic"

	mock.ExpectQuery(`SELECT .* FROM "complaints"`).
		WillReturnRows(sqlmock.NewRows(complaintColumns).AddRow(rowValues(bad)...))

	_, err := repo.GetByID(context.Background(), bad.ID)
	assert.ErrorContains(t, err, "unknown urgency")
}

func TestRepositoryGetByIDWithOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	c := sampleComplaint()

	cols := append(append([]string{}, complaintColumns...), ownerColumns...)
	values := append(rowValues(c), driver.Value(c.OwnerID.String()), driver.Value("Asha"), driver.Value("asha@x.com"))

	mock.ExpectQuery(`SELECT .* FROM "complaints" AS "c" LEFT JOIN "users" AS "owner"`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(values...))

	got, err := repo.GetByIDWithOwner(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	assert.Equal(t, Owner{ID: *c.OwnerID, Name: "Asha", Email: "asha@x.com"}, *got.Owner)
	assert.Equal(t, c.Title, got.Title)
}

func TestRepositoryListFiltersAndSorts(t *testing.T) {
	repo, mock := newMockRepo(t)
	owned := sampleComplaint()
	owned.Status = StatusResolved
	anon := sampleComplaint()
	anon.Status = StatusResolved
	anon.Anonymous = true
	anon.OwnerID = nil

	cols := append(append([]string{}, complaintColumns...), ownerColumns...)
	rows := sqlmock.NewRows(cols).
		AddRow(append(rowValues(owned), driver.Value(owned.OwnerID.String()), driver.Value("Asha"), driver.Value("asha@x.com"))...).
		AddRow(append(rowValues(anon), driver.Value(nil), driver.Value(nil), driver.Value(nil))...)

	mock.ExpectQuery(`LEFT JOIN "users" AS "owner" .* WHERE \(c.status = 'Resolved'\) AND \(c.urgency = 'High'\) AND \(c.location = 'Main St'\) ORDER BY c.created_at ASC`).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), Filter{
		Status:   StatusResolved,
		Urgency:  UrgencyHigh,
		Location: "Main St",
		Sort:     SortOldest,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Owner)
	assert.Equal(t, "Asha", list[0].Owner.Name)
	assert.Nil(t, list[1].Owner)
	assert.Nil(t, list[1].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListDefaultsToNewest(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`ORDER BY c.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, complaintColumns...), ownerColumns...)))

	list, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListByOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	c := sampleComplaint()

	mock.ExpectQuery(`WHERE \(c.user_id = '` + c.OwnerID.String() + `'\) ORDER BY c.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(complaintColumns).AddRow(rowValues(c)...))

	list, err := repo.ListByOwner(context.Background(), *c.OwnerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

// sqlLog records every statement bun sends through sqlmock
type sqlLog struct {
	mu   sync.Mutex
	stmt []string
}

func (l *sqlLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.stmt) == 0 {
		return ""
	}
	return l.stmt[len(l.stmt)-1]
}

func newLoggingMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock, *sqlLog) {
	t.Helper()
	log := &sqlLog{}
	matcher := sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		log.mu.Lock()
		log.stmt = append(log.stmt, actual)
		log.mu.Unlock()
		return sqlmock.QueryMatcherRegexp.Match(expected, actual)
	})
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRepository(database.NewBunDB(sqlDB)), mock, log
}

// setClause returns the part of an UPDATE between SET and WHERE
func setClause(stmt string) string {
	_, after, _ := strings.Cut(stmt, " SET ")
	set, _, _ := strings.Cut(after, " WHERE ")
	return set
}

func TestRepositoryUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), sampleComplaint(), ""))

	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), sampleComplaint(), ""), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateLeavesStatusAlone(t *testing.T) {
	repo, mock, log := newLoggingMockRepo(t)
	c := sampleComplaint()
	c.Status = StatusPending

	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), c, ""))

	set := setClause(log.last())
	assert.Contains(t, set, `"title"`)
	assert.Contains(t, set, `"updated_at"`)
	assert.NotContains(t, set, "status")
	assert.NotContains(t, log.last(), "status")
}

func TestRepositoryUpdateGuardedByStatus(t *testing.T) {
	repo, mock, log := newLoggingMockRepo(t)
	c := sampleComplaint()

	mock.ExpectExec(`UPDATE "complaints" .*\(status = 'Pending'\)`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), c, StatusPending))
	assert.NotContains(t, setClause(log.last()), "status")

	// row still there but no longer Pending
	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.ErrorIs(t, repo.Update(context.Background(), c, StatusPending), ErrStatusChanged)

	// row gone
	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	assert.ErrorIs(t, repo.Update(context.Background(), c, StatusPending), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetStatusWritesOnlyStatus(t *testing.T) {
	repo, mock, log := newLoggingMockRepo(t)
	id := uuid.New()
	at := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE "complaints"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetStatus(context.Background(), id, StatusResolved, at, ""))

	set := setClause(log.last())
	assert.Contains(t, set, "status = 'Resolved'")
	assert.Contains(t, set, "updated_at")
	assert.NotContains(t, set, "title")
	assert.NotContains(t, set, "user_id")

	mock.ExpectExec(`UPDATE "complaints" .*\(status = 'Pending'\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.ErrorIs(t, repo.SetStatus(context.Background(), id, StatusRejected, at, StatusPending), ErrStatusChanged)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM "complaints"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), uuid.New()))

	mock.ExpectExec(`DELETE FROM "complaints"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), ErrNotFound)
}
