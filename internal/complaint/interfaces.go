package complaint

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/blob"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/redmonkez12/nagarseva-api/internal/complaint Store,UserLookup,BlobStore,Notifier

// Store is the complaint persistence contract, implemented by Repository
type Store interface {
	Create(ctx context.Context, c *Complaint) error
	GetByID(ctx context.Context, id uuid.UUID) (*Complaint, error)
	GetByIDWithOwner(ctx context.Context, id uuid.UUID) (*WithOwner, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Complaint, error)
	List(ctx context.Context, f Filter) ([]*WithOwner, error)
	// Update writes owner-editable fields only. A non-empty from makes the
	// write conditional on the stored status, failing with ErrStatusChanged.
	Update(ctx context.Context, c *Complaint, from Status) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time, from Status) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserLookup resolves the acting user's profile for notifications
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// BlobStore persists an uploaded image and returns its URL
type BlobStore interface {
	Put(ctx context.Context, obj blob.Object) (string, error)
}

// Recipient is who a complaint notification is addressed to
type Recipient struct {
	Email string
	Name  string
}

// Notifier delivers complaint notifications on a best-effort basis.
// Implementations must not block the caller on delivery.
type Notifier interface {
	ComplaintSubmitted(ctx context.Context, to Recipient, c *Complaint)
	ComplaintUpdated(ctx context.Context, to Recipient, c *Complaint)
	ComplaintStatusChanged(ctx context.Context, to Recipient, c *Complaint)
}
