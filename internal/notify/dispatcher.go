package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/email"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/metrics"
)

// Dead-letter reasons
const (
	ReasonQueueFull  = "queue_full"
	ReasonShutdown   = "shutdown"
	ReasonTimeout    = "timeout"
	ReasonSendFailed = "send_failed"
)

// Sender delivers one rendered message
type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Job is a queued notification. Kind labels metrics and logs.
type Job struct {
	Kind    string
	Message email.Message
}

// DeadLetter is a job that will not be delivered
type DeadLetter struct {
	Job    Job
	Reason string
	Err    error
}

// Dispatcher delivers notifications off the request path through a bounded
// queue and a fixed worker pool. Enqueue never blocks.
type Dispatcher struct {
	sender      Sender
	queue       chan Job
	workers     int
	sendTimeout time.Duration
	logger      *logging.Logger
	metrics     *metrics.Metrics

	mu     sync.RWMutex
	closed bool

	onDeadLetter func(DeadLetter)
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithDeadLetterHook calls fn for every dead letter after it is logged and
// counted. fn runs on the goroutine that dropped the job, which may be a
// request handler, so it must return quickly.
func WithDeadLetterHook(fn func(DeadLetter)) Option {
	return func(d *Dispatcher) {
		d.onDeadLetter = fn
	}
}

func NewDispatcher(sender Sender, cfg config.NotificationConfig, sendTimeout time.Duration, logger *logging.Logger, m *metrics.Metrics, opts ...Option) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sender:      sender,
		queue:       make(chan Job, size),
		workers:     workers,
		sendTimeout: sendTimeout,
		logger:      logger,
		metrics:     m,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue hands job to the worker pool and reports whether it was accepted.
// A full queue or a stopped dispatcher dead-letters the job.
func (d *Dispatcher) Enqueue(_ context.Context, job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.deadLetter(DeadLetter{Job: job, Reason: ReasonShutdown})
		return false
	}

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		return true
	default:
		d.deadLetter(DeadLetter{Job: job, Reason: ReasonQueueFull})
		return false
	}
}

// Run starts the workers and blocks until ctx is cancelled and every job
// already queued has been attempted.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for job := range d.queue {
				d.metrics.SetQueueDepth(len(d.queue))
				d.deliver(job)
			}
			return nil
		})
	}

	d.logger.Info("notification dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))

	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	close(d.queue)
	pending := len(d.queue)
	d.mu.Unlock()

	d.logger.Info("draining notification queue", "pending", pending)
	err := g.Wait()
	d.logger.Info("notification dispatcher stopped")
	return err
}

func (d *Dispatcher) deliver(job Job) {
	ctx := context.Background()
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	ctx = logging.WithContext(ctx, d.logger)

	if err := d.sender.Send(ctx, job.Message); err != nil {
		reason := ReasonSendFailed
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		d.deadLetter(DeadLetter{Job: job, Reason: reason, Err: err})
		return
	}

	d.metrics.NotificationSent(job.Kind)
}

func (d *Dispatcher) deadLetter(dl DeadLetter) {
	d.logger.Error("notification dead-lettered",
		"kind", dl.Job.Kind,
		"to", dl.Job.Message.To,
		"subject", dl.Job.Message.Subject,
		"reason", dl.Reason,
		"error", dl.Err,
	)
	d.metrics.NotificationDeadLettered(dl.Job.Kind, dl.Reason)

	if d.onDeadLetter != nil {
		d.onDeadLetter(dl)
	}
}
