package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/nagarseva-api/internal/logging"
)

const deadLetterKey = "notify:dead_letters"

// recordTimeout bounds the Redis write, since Record can run on a request goroutine.
const recordTimeout = 500 * time.Millisecond

// DeadLetterEntry is what the log keeps per dropped notification. Message
// bodies are left out.
type DeadLetterEntry struct {
	Kind    string    `json:"kind"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Reason  string    `json:"reason"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

func newDeadLetterEntry(dl DeadLetter, at time.Time) DeadLetterEntry {
	e := DeadLetterEntry{
		Kind:    dl.Job.Kind,
		To:      dl.Job.Message.To,
		Subject: dl.Job.Message.Subject,
		Reason:  dl.Reason,
		At:      at.UTC(),
	}
	if dl.Err != nil {
		e.Error = dl.Err.Error()
	}
	return e
}

// RedisDeadLetterLog keeps the most recent dead letters in a capped Redis list,
// newest first, so operators can see what was never delivered.
type RedisDeadLetterLog struct {
	client redis.Cmdable
	size   int64
	logger *logging.Logger
	now    func() time.Time
}

func NewRedisDeadLetterLog(client redis.Cmdable, size int, logger *logging.Logger) *RedisDeadLetterLog {
	return &RedisDeadLetterLog{client: client, size: int64(size), logger: logger, now: time.Now}
}

// Record appends dl and trims the list. It is meant for WithDeadLetterHook;
// failures are logged, never returned.
func (l *RedisDeadLetterLog) Record(dl DeadLetter) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := l.record(ctx, newDeadLetterEntry(dl, l.now())); err != nil {
		l.logger.Error("failed to record dead letter", "kind", dl.Job.Kind, "error", err)
	}
}

func (l *RedisDeadLetterLog) record(ctx context.Context, e DeadLetterEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, deadLetterKey, data)
		pipe.LTrim(ctx, deadLetterKey, 0, l.size-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store dead letter: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (l *RedisDeadLetterLog) Recent(ctx context.Context, n int) ([]DeadLetterEntry, error) {
	raw, err := l.client.LRange(ctx, deadLetterKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	out := make([]DeadLetterEntry, 0, len(raw))
	for _, r := range raw {
		var e DeadLetterEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
