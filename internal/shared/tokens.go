package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound indicates an unknown, expired or revoked token.
var ErrTokenNotFound = errors.New("shared: token not found")

// Principal identifies the authenticated caller attached to a token.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// TokenManager issues and resolves opaque bearer tokens backed by Redis.
type TokenManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		client: client,
		ttl:    ttl,
		secret: []byte(secret),
	}
}

// Issue mints a fresh token for the principal and stores it with TTL.
func (tm *TokenManager) Issue(ctx context.Context, p Principal) (string, error) {
	token := tm.generateToken()
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := tm.client.Set(ctx, tm.redisKey(token), payload, tm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup resolves a token back to its principal and refreshes the TTL.
func (tm *TokenManager) Lookup(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	payload, err := tm.client.Get(ctx, tm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	// Sliding expiry keeps active sessions alive.
	_ = tm.client.Expire(ctx, tm.redisKey(token), tm.ttl).Err()
	return &p, nil
}

// Revoke deletes the token so subsequent lookups fail.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := tm.client.Del(ctx, tm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// RevokeAllForUser removes every live token issued to the given user.
func (tm *TokenManager) RevokeAllForUser(ctx context.Context, userID int64) error {
	iter := tm.client.Scan(ctx, 0, "token:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		payload, err := tm.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		var p Principal
		if err := json.Unmarshal(payload, &p); err != nil {
			continue
		}
		if p.UserID == userID {
			if err := tm.client.Del(ctx, key).Err(); err != nil {
				return err
			}
		}
	}
	return iter.Err()
}

// TTL exposes the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) redisKey(token string) string {
	return "token:" + token
}

func (tm *TokenManager) generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(tm.secret) > 0 {
		for i := range b {
			b[i] ^= tm.secret[i%len(tm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
