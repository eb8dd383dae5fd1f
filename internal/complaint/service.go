package complaint

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
	"github.com/redmonkez12/nagarseva-api/internal/authz"
	"github.com/redmonkez12/nagarseva-api/internal/blob"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
)

// StatusPolicy decides what happens when a closed complaint is touched again
type StatusPolicy string

const (
	// PolicyOverwrite re-applies status changes and edits at any status, re-sending notifications
	PolicyOverwrite StatusPolicy = "overwrite"
	// PolicyTerminal rejects edits and status changes once a complaint is Resolved or Rejected
	PolicyTerminal StatusPolicy = "terminal"
)

// Service orchestrates the complaint lifecycle
type Service struct {
	store    Store
	users    UserLookup
	blobs    BlobStore
	notifier Notifier
	logger   *logging.Logger
	policy   StatusPolicy
	now      func() time.Time
}

func NewService(store Store, users UserLookup, blobs BlobStore, notifier Notifier, logger *logging.Logger, policy StatusPolicy) *Service {
	if policy == "" {
		policy = PolicyOverwrite
	}
	return &Service{
		store:    store,
		users:    users,
		blobs:    blobs,
		notifier: notifier,
		logger:   logger,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create files a complaint for actor. Anonymous complaints carry no owner.
func (s *Service) Create(ctx context.Context, actor authz.Actor, f Fields, image *blob.Object) (*Complaint, error) {
	if actor.ID == uuid.Nil {
		return nil, apperror.Unauthenticated("authentication required")
	}

	title, err := requiredText("title", f.Title)
	if err != nil {
		return nil, err
	}
	description, err := requiredText("description", f.Description)
	if err != nil {
		return nil, err
	}
	location, err := requiredText("location", f.Location)
	if err != nil {
		return nil, err
	}
	urgency, err := ParseUrgency(f.Urgency)
	if err != nil {
		return nil, apperror.Validation("urgency", "urgency must be Low, Medium or High")
	}

	imageURL, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &Complaint{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Location:    location,
		Urgency:     urgency,
		ImageURL:    imageURL,
		Status:      StatusPending,
		Anonymous:   f.Anonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !f.Anonymous {
		owner := actor.ID
		c.OwnerID = &owner
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, apperror.Internal("failed to save complaint", err)
	}

	if to, ok := s.recipientFor(ctx, actor.ID); ok {
		s.notifier.ComplaintSubmitted(ctx, to, c)
	}

	s.logger.Info("complaint created", "complaint_id", c.ID, "anonymous", c.Anonymous)
	return c, nil
}

// GetByID returns a complaint to its owner. Admins get no exemption here.
func (s *Service) GetByID(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanFetchComplaint(actor, c.OwnerID) {
		return nil, apperror.Forbidden("not authorized to view this complaint")
	}
	return c, nil
}

// ListOwn returns the actor's complaints, newest first
func (s *Service) ListOwn(ctx context.Context, actor authz.Actor) ([]*Complaint, error) {
	list, err := s.store.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, apperror.Internal("failed to list complaints", err)
	}
	return list, nil
}

// ListAll returns every complaint matching f, with owners resolved
func (s *Service) ListAll(ctx context.Context, actor authz.Actor, f Filter) ([]*WithOwner, error) {
	if !authz.CanListAllComplaints(actor) {
		return nil, apperror.Forbidden("admin access required")
	}

	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, apperror.Internal("failed to list complaints", err)
	}

	out := list[:0]
	for _, c := range list {
		if authz.CanViewComplaint(actor, c.OwnerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Update applies p to a complaint owned by actor
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, p Patch, image *blob.Object) (*Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateComplaint(actor, c.OwnerID) {
		return nil, apperror.Forbidden("not authorized to update this complaint")
	}
	if err := s.checkOpen(c); err != nil {
		return nil, err
	}

	next := *c
	if err := applyPatch(&next, p); err != nil {
		return nil, err
	}

	if image != nil {
		url, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		next.ImageURL = url
	}

	next.UpdatedAt = s.now()
	if err := s.store.Update(ctx, &next, s.writeGuard()); err != nil {
		return nil, storeError(err, "failed to update complaint")
	}

	// status may have moved since the read above
	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if to, ok := s.recipientFor(ctx, actor.ID); ok {
		s.notifier.ComplaintUpdated(ctx, to, updated)
	}

	return updated, nil
}

// Delete removes a complaint owned by actor, at any status
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanMutateComplaint(actor, c.OwnerID) {
		return apperror.Forbidden("not authorized to delete this complaint")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete complaint")
	}

	s.logger.Info("complaint deleted", "complaint_id", id)
	return nil
}

// Resolve marks a complaint Resolved and notifies its owner, if any
func (s *Service) Resolve(ctx context.Context, actor authz.Actor, id uuid.UUID) (*WithOwner, error) {
	return s.setStatus(ctx, actor, id, StatusResolved)
}

// Reject marks a complaint Rejected and notifies its owner, if any
func (s *Service) Reject(ctx context.Context, actor authz.Actor, id uuid.UUID) (*WithOwner, error) {
	return s.setStatus(ctx, actor, id, StatusRejected)
}

func (s *Service) setStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, status Status) (*WithOwner, error) {
	c, err := s.store.GetByIDWithOwner(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load complaint")
	}
	if !authz.CanSetStatus(actor) {
		return nil, apperror.Forbidden("admin access required")
	}
	if err := s.checkOpen(c.Complaint); err != nil {
		return nil, err
	}

	if err := s.store.SetStatus(ctx, id, status, s.now(), s.writeGuard()); err != nil {
		return nil, storeError(err, "failed to update complaint status")
	}

	c, err = s.store.GetByIDWithOwner(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load complaint")
	}

	if c.Owner != nil {
		s.notifier.ComplaintStatusChanged(ctx, Recipient{Email: c.Owner.Email, Name: c.Owner.Name}, c.Complaint)
	}

	s.logger.Info("complaint status changed", "complaint_id", id, "status", string(status), "admin_id", actor.ID)
	return c, nil
}

// checkOpen enforces the terminal policy. Under overwrite every status is open.
func (s *Service) checkOpen(c *Complaint) error {
	if s.policy == PolicyTerminal && c.Status != StatusPending {
		return apperror.Conflict("complaint is already " + strings.ToLower(string(c.Status)))
	}
	return nil
}

// writeGuard makes writes conditional on the complaint still being Pending
// under the terminal policy, so a concurrent status change is not overridden.
func (s *Service) writeGuard() Status {
	if s.policy == PolicyTerminal {
		return StatusPending
	}
	return ""
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Complaint, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load complaint")
	}
	return c, nil
}

func (s *Service) upload(ctx context.Context, image *blob.Object) (string, error) {
	if image == nil {
		return "", nil
	}

	url, err := s.blobs.Put(ctx, *image)
	if err != nil {
		if blob.IsInvalid(err) {
			verr := apperror.Wrap(apperror.KindValidation, "image must be a JPEG, PNG, GIF or WebP within the size limit", err)
			verr.Field = "image"
			return "", verr
		}
		return "", apperror.Dependency("failed to upload image", err)
	}
	return url, nil
}

// recipientFor resolves a notification address. A failed lookup skips the
// notification rather than failing the operation.
func (s *Service) recipientFor(ctx context.Context, userID uuid.UUID) (Recipient, bool) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("skipping complaint notification, user lookup failed", "user_id", userID, "error", err)
		return Recipient{}, false
	}
	return Recipient{Email: u.Email, Name: u.Name}, true
}

func applyPatch(c *Complaint, p Patch) error {
	if p.Title != nil {
		v, err := requiredText("title", *p.Title)
		if err != nil {
			return err
		}
		c.Title = v
	}
	if p.Description != nil {
		v, err := requiredText("description", *p.Description)
		if err != nil {
			return err
		}
		c.Description = v
	}
	if p.Location != nil {
		v, err := requiredText("location", *p.Location)
		if err != nil {
			return err
		}
		c.Location = v
	}
	if p.Urgency != nil {
		if strings.TrimSpace(*p.Urgency) == "" {
			return apperror.Validation("urgency", "urgency cannot be empty")
		}
		u, err := ParseUrgency(*p.Urgency)
		if err != nil {
			return apperror.Validation("urgency", "urgency must be Low, Medium or High")
		}
		c.Urgency = u
	}
	if p.Anonymous != nil && *p.Anonymous {
		// going anonymous drops the owner reference for good
		c.Anonymous = true
		c.OwnerID = nil
	}
	if p.RemoveImage {
		c.ImageURL = ""
	}
	return nil
}

func requiredText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperror.Validation(field, field+" is required")
	}
	return v, nil
}

func storeError(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("complaint not found")
	}
	if errors.Is(err, ErrStatusChanged) {
		return apperror.Conflict("complaint is no longer pending")
	}
	return apperror.Internal(msg, err)
}

// ParseFilter validates admin listing query parameters
func ParseFilter(status, urgency, location, sort string) (Filter, error) {
	var f Filter
	if strings.TrimSpace(status) != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return Filter{}, apperror.Validation("status", "status must be Pending, Resolved or Rejected")
		}
		f.Status = st
	}
	if strings.TrimSpace(urgency) != "" {
		u, err := ParseUrgency(urgency)
		if err != nil {
			return Filter{}, apperror.Validation("urgency", "urgency must be Low, Medium or High")
		}
		f.Urgency = u
	}
	f.Location = strings.TrimSpace(location)

	order, err := ParseSortOrder(sort)
	if err != nil {
		return Filter{}, apperror.Validation("sort", "sort must be newest or oldest")
	}
	f.Sort = order
	return f, nil
}
