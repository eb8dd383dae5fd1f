package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisVerificationStore keeps verification tokens in Redis with TTL
type RedisVerificationStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisVerificationStore(client *redis.Client, ttl time.Duration) *RedisVerificationStore {
	if ttl <= 0 {
		ttl = VerificationTokenTTL
	}
	return &RedisVerificationStore{client: client, ttl: ttl, now: time.Now}
}

// getVerificationKey generates the Redis key for a verification token
func getVerificationKey(tokenHash string) string {
	return fmt.Sprintf("email_verification:%s", tokenHash)
}

// getUserVerificationsKey generates the Redis key for a user's token set
func getUserVerificationsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_verifications:%s", userID.String())
}

// Store saves a verification token for the user
func (r *RedisVerificationStore) Store(ctx context.Context, userID uuid.UUID, token string) error {
	tokenHash := hashToken(token)
	tokenKey := getVerificationKey(tokenHash)
	userKey := getUserVerificationsKey(userID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, tokenKey, map[string]any{
		"user_id":    userID.String(),
		"created_at": r.now().UnixNano(),
	})
	pipe.Expire(ctx, tokenKey, r.ttl)
	pipe.SAdd(ctx, userKey, tokenHash)
	pipe.Expire(ctx, userKey, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	return nil
}

// Lookup resolves a token. Records older than the TTL are treated as absent
// even if Redis has not evicted them yet.
func (r *RedisVerificationStore) Lookup(ctx context.Context, token string) (*VerificationToken, error) {
	data, err := r.client.HGetAll(ctx, getVerificationKey(hashToken(token))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrVerificationTokenNotFound
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt verification token record: %w", err)
	}
	createdNanos, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt verification token record: %w", err)
	}

	vt := &VerificationToken{UserID: userID, CreatedAt: time.Unix(0, createdNanos)}
	if r.now().After(vt.ExpiresAt(r.ttl)) {
		return nil, ErrVerificationTokenNotFound
	}
	return vt, nil
}

// Delete removes a single token and its entry in the owner's set
func (r *RedisVerificationStore) Delete(ctx context.Context, token string) error {
	tokenHash := hashToken(token)
	tokenKey := getVerificationKey(tokenHash)

	rawID, err := r.client.HGet(ctx, tokenKey, "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read verification token: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tokenKey)
	if userID, parseErr := uuid.Parse(rawID); parseErr == nil {
		pipe.SRem(ctx, getUserVerificationsKey(userID), tokenHash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete verification token: %w", err)
	}
	return nil
}

// DeleteAllForUser invalidates every outstanding token of the user
func (r *RedisVerificationStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	userKey := getUserVerificationsKey(userID)

	tokenHashes, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user verification tokens: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, tokenHash := range tokenHashes {
		pipe.Del(ctx, getVerificationKey(tokenHash))
	}
	pipe.Del(ctx, userKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user verification tokens: %w", err)
	}
	return nil
}

const registrationIdempotencyTTL = 24 * time.Hour

// RedisIdempotencyStore remembers registration results per Idempotency-Key
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func getIdempotencyKey(key string) string {
	return fmt.Sprintf("register_idempotency:%s", hashToken(key))
}

// Load returns the stored result, or nil when the key is unused
func (r *RedisIdempotencyStore) Load(ctx context.Context, key string) (*RegisterResult, error) {
	raw, err := r.client.Get(ctx, getIdempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	var result RegisterResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	return &result, nil
}

func (r *RedisIdempotencyStore) Save(ctx context.Context, key string, result *RegisterResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := r.client.Set(ctx, getIdempotencyKey(key), raw, registrationIdempotencyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}
