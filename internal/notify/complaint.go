package notify

import (
	"context"
	"strings"

	"github.com/redmonkez12/nagarseva-api/internal/complaint"
	"github.com/redmonkez12/nagarseva-api/internal/email"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
)

// Notification kinds
const (
	KindComplaintSubmitted = "complaint_submitted"
	KindComplaintUpdated   = "complaint_updated"
	KindComplaintResolved  = "complaint_resolved"
	KindComplaintRejected  = "complaint_rejected"
)

// Renderer builds complaint emails, implemented by email.Service
type Renderer interface {
	ComplaintSubmittedMessage(to, name string, c email.ComplaintDetails) (email.Message, error)
	ComplaintUpdatedMessage(to, name string, c email.ComplaintDetails) (email.Message, error)
	ComplaintStatusMessage(to, name string, c email.ComplaintDetails) (email.Message, error)
}

// Enqueuer accepts jobs for background delivery, implemented by Dispatcher
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) bool
}

// ComplaintNotifier renders complaint events and queues them for delivery.
// It satisfies complaint.Notifier.
type ComplaintNotifier struct {
	renderer Renderer
	queue    Enqueuer
}

func NewComplaintNotifier(renderer Renderer, queue Enqueuer) *ComplaintNotifier {
	return &ComplaintNotifier{renderer: renderer, queue: queue}
}

var _ complaint.Notifier = (*ComplaintNotifier)(nil)

func (n *ComplaintNotifier) ComplaintSubmitted(ctx context.Context, to complaint.Recipient, c *complaint.Complaint) {
	n.notify(ctx, KindComplaintSubmitted, to, c, n.renderer.ComplaintSubmittedMessage)
}

func (n *ComplaintNotifier) ComplaintUpdated(ctx context.Context, to complaint.Recipient, c *complaint.Complaint) {
	n.notify(ctx, KindComplaintUpdated, to, c, n.renderer.ComplaintUpdatedMessage)
}

func (n *ComplaintNotifier) ComplaintStatusChanged(ctx context.Context, to complaint.Recipient, c *complaint.Complaint) {
	kind := KindComplaintResolved
	if c.Status == complaint.StatusRejected {
		kind = KindComplaintRejected
	}
	n.notify(ctx, kind, to, c, n.renderer.ComplaintStatusMessage)
}

type renderFunc func(to, name string, c email.ComplaintDetails) (email.Message, error)

func (n *ComplaintNotifier) notify(ctx context.Context, kind string, to complaint.Recipient, c *complaint.Complaint, render renderFunc) {
	logger := logging.GetLoggerFromContext(ctx)

	if strings.TrimSpace(to.Email) == "" {
		logger.Debug("skipping notification without recipient", "kind", kind, "complaint_id", c.ID)
		return
	}

	msg, err := render(to.Email, to.Name, details(c))
	if err != nil {
		logger.Error("failed to render notification", "kind", kind, "complaint_id", c.ID, "error", err)
		return
	}

	if n.queue.Enqueue(ctx, Job{Kind: kind, Message: msg}) {
		logger.Debug("notification queued", "kind", kind, "complaint_id", c.ID)
	}
}

func details(c *complaint.Complaint) email.ComplaintDetails {
	return email.ComplaintDetails{
		Title:       c.Title,
		Description: c.Description,
		Urgency:     string(c.Urgency),
		Location:    c.Location,
		Status:      string(c.Status),
	}
}
