package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusconnect/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshTokenInvalid is returned for unknown or expired refresh tokens.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired")
	// ErrRefreshTokenReused is returned when an already rotated token is presented again.
	ErrRefreshTokenReused = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable is returned when no Redis client is configured.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

const (
	refreshPrefix     = "refresh:"
	refreshUsedPrefix = "refresh:used:"
	refreshUserPrefix = "refresh:user:"
)

type refreshRecord struct {
	UserID   uint      `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// RefreshStore keeps single-use refresh tokens in Redis. Only sha256 digests
// of tokens are stored.
type RefreshStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefreshStore returns a store whose tokens live for ttl.
func NewRefreshStore(client *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{client: client, ttl: ttl}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func userSetKey(userID uint) string {
	return fmt.Sprintf("%s%d", refreshUserPrefix, userID)
}

// Issue creates a new refresh token for userID.
func (s *RefreshStore) Issue(ctx context.Context, userID uint) (string, error) {
	if s.client == nil {
		return "", ErrStoreUnavailable
	}
	ctx, span := observability.StartRedisSpan(ctx, "refresh.issue")
	defer span.End()

	token := newOpaqueToken()
	h := digest(token)
	raw, err := json.Marshal(refreshRecord{UserID: userID, IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshPrefix+h, raw, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), h)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Rotate consumes token and issues its replacement. A token can be rotated
// exactly once; presenting it again revokes every session of its owner.
func (s *RefreshStore) Rotate(ctx context.Context, token string) (uint, string, error) {
	if s.client == nil {
		return 0, "", ErrStoreUnavailable
	}
	ctx, span := observability.StartRedisSpan(ctx, "refresh.rotate")
	defer span.End()

	h := digest(token)
	raw, err := s.client.GetDel(ctx, refreshPrefix+h).Bytes()
	if errors.Is(err, redis.Nil) {
		owner, usedErr := s.client.Get(ctx, refreshUsedPrefix+h).Uint64()
		if usedErr == nil && owner > 0 {
			_ = s.RevokeAll(ctx, uint(owner))
			return 0, "", ErrRefreshTokenReused
		}
		return 0, "", ErrRefreshTokenInvalid
	}
	if err != nil {
		return 0, "", fmt.Errorf("read refresh token: %w", err)
	}

	var rec refreshRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.UserID == 0 {
		return 0, "", ErrRefreshTokenInvalid
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshUsedPrefix+h, rec.UserID, s.ttl)
	pipe.SRem(ctx, userSetKey(rec.UserID), h)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, "", fmt.Errorf("mark refresh token used: %w", err)
	}

	next, err := s.Issue(ctx, rec.UserID)
	if err != nil {
		return 0, "", err
	}
	return rec.UserID, next, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	if s.client == nil {
		return nil
	}
	h := digest(token)
	raw, err := s.client.GetDel(ctx, refreshPrefix+h).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	var rec refreshRecord
	if json.Unmarshal(raw, &rec) == nil && rec.UserID > 0 {
		s.client.SRem(ctx, userSetKey(rec.UserID), h)
	}
	return nil
}

// RevokeAll deletes every outstanding refresh token of userID.
func (s *RefreshStore) RevokeAll(ctx context.Context, userID uint) error {
	if s.client == nil {
		return nil
	}
	hashes, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, refreshPrefix+h)
	}
	keys = append(keys, userSetKey(userID))
	return s.client.Del(ctx, keys...).Err()
}
