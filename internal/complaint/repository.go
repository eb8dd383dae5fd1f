package complaint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/nagarseva-api/internal/database"
)

var (
	ErrNotFound      = errors.New("complaint not found")
	ErrStatusChanged = errors.New("complaint status changed")
)

// Repository handles complaint persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create inserts a complaint. ID and timestamps must already be set.
func (r *Repository) Create(ctx context.Context, c *Complaint) error {
	if _, err := r.db.NewInsert().Model(mapModelToDB(c)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil
}

// GetByID retrieves a complaint without its owner
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	row := new(database.Complaint)
	err := r.db.NewSelect().
		Model(row).
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}

	return mapDBToModel(row)
}

// GetByIDWithOwner retrieves a complaint joined with its owner's profile
func (r *Repository) GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*WithOwner, error) {
	row := new(database.Complaint)
	err := r.db.NewSelect().
		Model(row).
		Relation("Owner").
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}

	return mapDBToWithOwner(row)
}

// ListByOwner returns the owner's complaints, newest first
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Complaint, error) {
	var rows []database.Complaint
	err := r.db.NewSelect().
		Model(&rows).
		Where("c.user_id = ?", ownerID).
		OrderExpr("c.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}

	out := make([]*Complaint, 0, len(rows))
	for i := range rows {
		c, err := mapDBToModel(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// List returns every complaint matching f with owners resolved
func (r *Repository) List(ctx context.Context, f Filter) ([]*WithOwner, error) {
	var rows []database.Complaint
	q := r.db.NewSelect().
		Model(&rows).
		Relation("Owner")

	if f.Status != "" {
		q = q.Where("c.status = ?", string(f.Status))
	}
	if f.Urgency != "" {
		q = q.Where("c.urgency = ?", string(f.Urgency))
	}
	if f.Location != "" {
		q = q.Where("c.location = ?", f.Location)
	}

	if f.Sort == SortOldest {
		q = q.OrderExpr("c.created_at ASC")
	} else {
		q = q.OrderExpr("c.created_at DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}

	out := make([]*WithOwner, 0, len(rows))
	for i := range rows {
		c, err := mapDBToWithOwner(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// editableColumns are what an owner's edit may write. Status is written only
// by SetStatus so an edit and a status change never revert each other.
var editableColumns = []string{
	"title", "description", "location", "urgency", "image_url", "anonymous", "user_id", "updated_at",
}

// Update writes the owner-editable columns of c. A non-empty from limits the
// write to a row whose stored status is still from.
func (r *Repository) Update(ctx context.Context, c *Complaint, from Status) error {
	q := r.db.NewUpdate().
		Model(mapModelToDB(c)).
		Column(editableColumns...).
		WherePK()
	if from != "" {
		q = q.Where("status = ?", string(from))
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update complaint: %w", err)
	}

	return r.checkWritten(ctx, result, c.ID, from)
}

// SetStatus writes only status and updated_at, guarded by from like Update
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time, from Status) error {
	q := r.db.NewUpdate().
		Model((*database.Complaint)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", at).
		Where("id = ?", id)
	if from != "" {
		q = q.Where("status = ?", string(from))
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update complaint status: %w", err)
	}

	return r.checkWritten(ctx, result, id, from)
}

// checkWritten tells a missing row apart from one whose status no longer
// matched the guard.
func (r *Repository) checkWritten(ctx context.Context, result sql.Result, id uuid.UUID, from Status) error {
	err := requireAffected(result)
	if from == "" || !errors.Is(err, ErrNotFound) {
		return err
	}

	exists, err := r.db.NewSelect().
		Model((*database.Complaint)(nil)).
		Where("c.id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check complaint: %w", err)
	}
	if exists {
		return ErrStatusChanged
	}
	return ErrNotFound
}

// Delete removes a complaint permanently
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.Complaint)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete complaint: %w", err)
	}

	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapModelToDB(c *Complaint) *database.Complaint {
	return &database.Complaint{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Location:    c.Location,
		Urgency:     string(c.Urgency),
		ImageURL:    c.ImageURL,
		Status:      string(c.Status),
		Anonymous:   c.Anonymous,
		UserID:      c.OwnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func mapDBToModel(row *database.Complaint) (*Complaint, error) {
	urgency, err := ParseUrgency(row.Urgency)
	if err != nil {
		return nil, fmt.Errorf("complaint %s: %w", row.ID, err)
	}
	status, err := ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("complaint %s: %w", row.ID, err)
	}

	return &Complaint{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		Urgency:     urgency,
		ImageURL:    row.ImageURL,
		Status:      status,
		Anonymous:   row.Anonymous,
		OwnerID:     row.UserID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// mapDBToWithOwner treats a joined owner with a zero id as absent, which is
// how a LEFT JOIN on an anonymous complaint comes back.
func mapDBToWithOwner(row *database.Complaint) (*WithOwner, error) {
	c, err := mapDBToModel(row)
	if err != nil {
		return nil, err
	}

	out := &WithOwner{Complaint: c}
	if row.Owner != nil && row.Owner.ID != uuid.Nil {
		out.Owner = &Owner{ID: row.Owner.ID, Name: row.Owner.Name, Email: row.Owner.Email}
	}
	return out, nil
}
