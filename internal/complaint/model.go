package complaint

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Urgency is how soon the reporter wants the issue handled
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// ParseUrgency accepts the canonical spelling in any letter case. Empty means Low.
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return UrgencyLow, nil
	case "medium":
		return UrgencyMedium, nil
	case "high":
		return UrgencyHigh, nil
	default:
		return "", fmt.Errorf("unknown urgency %q", s)
	}
}

// Status is the lifecycle state of a complaint
type Status string

const (
	StatusPending  Status = "Pending"
	StatusResolved Status = "Resolved"
	StatusRejected Status = "Rejected"
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "resolved":
		return StatusResolved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// IsTerminal reports whether no further transition is expected
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Complaint is a civic issue report. OwnerID is nil for anonymous complaints.
type Complaint struct {
	ID          uuid.UUID
	Title       string
	Description string
	Location    string
	Urgency     Urgency
	ImageURL    string
	Status      Status
	Anonymous   bool
	OwnerID     *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VisibleToAdmin is derived: only non-anonymous complaints are flagged for admins.
func (c *Complaint) VisibleToAdmin() bool {
	return !c.Anonymous
}

// Owner is the display form of a complaint's author
type Owner struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// WithOwner pairs a complaint with its resolved owner, nil when anonymous
type WithOwner struct {
	*Complaint
	Owner *Owner
}

// Fields is the input of Create
type Fields struct {
	Title       string
	Description string
	Location    string
	Urgency     string
	Anonymous   bool
}

// Patch is a partial update. A nil field keeps the stored value; a non-nil
// field replaces it. RemoveImage clears the image URL unless a new image is
// uploaded in the same call.
type Patch struct {
	Title       *string
	Description *string
	Location    *string
	Urgency     *string
	Anonymous   *bool
	RemoveImage bool
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Urgency == nil && p.Anonymous == nil && !p.RemoveImage
}

// SortOrder orders admin listings by creation time
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newest":
		return SortNewest, nil
	case "oldest":
		return SortOldest, nil
	default:
		return "", fmt.Errorf("unknown sort %q", s)
	}
}

// Filter narrows the admin listing. Empty fields do not filter; set fields are ANDed.
type Filter struct {
	Status   Status
	Urgency  Urgency
	Location string
	Sort     SortOrder
}
