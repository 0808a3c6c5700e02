package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession indicates the request carried no resolvable session token.
var ErrNoSession = errors.New("no session")

// SessionManager stores bearer-token sessions in Redis. Tokens are issued at
// login and presented by clients in the Authorization header.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

type sessionPayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Issue creates a session for the identity and returns the bearer token.
func (sm *SessionManager) Issue(ctx context.Context, id Identity) (string, error) {
	token := uuid.NewString()
	data, err := json.Marshal(sessionPayload{UserID: id.UserID, Email: id.Email, Role: id.Role})
	if err != nil {
		return "", err
	}
	if err := sm.client.Set(ctx, sm.redisKey(token), data, sm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve loads the identity for the bearer token of a request. Returns
// ErrNoSession when the header is absent or the token is unknown/expired.
func (sm *SessionManager) Resolve(ctx context.Context, r *http.Request) (Identity, error) {
	token := BearerToken(r)
	if token == "" {
		return Identity{}, ErrNoSession
	}
	data, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, ErrNoSession
		}
		return Identity{}, err
	}
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: payload.UserID, Email: payload.Email, Role: payload.Role}, nil
}

// Revoke deletes the session behind the token.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := sm.client.Del(ctx, sm.redisKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
