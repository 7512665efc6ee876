package devapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionIDSize = 16
	secretSize    = 32
)

var errInvalidRefresh = errors.New("invalid refresh token")

// refreshToken is sessionID || secret, base64url without padding. Only the
// secret's SHA-256 is stored.
type refreshToken struct {
	sessionID [sessionIDSize]byte
	secret    [secretSize]byte
}

func newRefreshToken() (refreshToken, error) {
	var t refreshToken
	if _, err := rand.Read(t.sessionID[:]); err != nil {
		return t, err
	}
	if _, err := rand.Read(t.secret[:]); err != nil {
		return t, err
	}
	return t, nil
}

func parseRefreshToken(s string) (refreshToken, error) {
	var t refreshToken
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != sessionIDSize+secretSize {
		return t, errInvalidRefresh
	}
	copy(t.sessionID[:], raw[:sessionIDSize])
	copy(t.secret[:], raw[sessionIDSize:])
	return t, nil
}

func (t refreshToken) String() string {
	var raw [sessionIDSize + secretSize]byte
	copy(raw[:sessionIDSize], t.sessionID[:])
	copy(raw[sessionIDSize:], t.secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func (t refreshToken) id() string {
	return base64.RawURLEncoding.EncodeToString(t.sessionID[:])
}

func (t refreshToken) hash() string {
	sum := sha256.Sum256(t.secret[:])
	return hex.EncodeToString(sum[:])
}

// sessionStore keeps refresh sessions in Redis:
//
//	<prefix>:refresh:<sid>       -> "<userID>|<secret hash>", TTL = session TTL
//	<prefix>:user-refresh:<uid>  -> set of sids
type sessionStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func (s *sessionStore) sessionKey(sid string) string {
	return s.prefix + ":refresh:" + sid
}

func (s *sessionStore) userKey(userID string) string {
	return s.prefix + ":user-refresh:" + userID
}

// Issue opens a refresh session for userID.
func (s *sessionStore) Issue(ctx context.Context, userID string) (string, error) {
	t, err := newRefreshToken()
	if err != nil {
		return "", err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessionKey(t.id()), userID+"|"+t.hash(), s.ttl)
	pipe.SAdd(ctx, s.userKey(userID), t.id())
	pipe.Expire(ctx, s.userKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store refresh session: %w", err)
	}
	return t.String(), nil
}

// Verify returns the user and session ID a refresh token belongs to.
func (s *sessionStore) Verify(ctx context.Context, token string) (userID, sessionID string, err error) {
	t, err := parseRefreshToken(strings.TrimSpace(token))
	if err != nil {
		return "", "", err
	}

	val, err := s.redis.Get(ctx, s.sessionKey(t.id())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", errInvalidRefresh
		}
		return "", "", fmt.Errorf("load refresh session: %w", err)
	}

	uid, stored, ok := strings.Cut(val, "|")
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(t.hash())) != 1 {
		return "", "", errInvalidRefresh
	}
	return uid, t.id(), nil
}

// RevokeUser ends every refresh session of userID. Revoking twice is a
// no-op.
func (s *sessionStore) RevokeUser(ctx context.Context, userID string) error {
	sids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list refresh sessions: %w", err)
	}

	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, s.sessionKey(sid))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete refresh sessions: %w", err)
	}
	return nil
}
