package assertion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChallengeTTL bounds how long an issued challenge stays redeemable.
const DefaultChallengeTTL = 2 * time.Minute

var ErrChallengeNotFound = errors.New("challenge not found or expired")

// ChallengeStore keeps issued challenges in Redis, keyed by credential id.
// A challenge is single-use: Consume removes it atomically on read.
type ChallengeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewChallengeStore(rdb *redis.Client, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{rdb: rdb, ttl: ttl}
}

// Issue generates a fresh challenge for the credential and stores it with a
// short TTL, replacing any previously issued challenge.
func (s *ChallengeStore) Issue(ctx context.Context, credentialID string) (string, error) {
	challenge, err := GenerateChallenge()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, challengeKey(credentialID), challenge, s.ttl).Err(); err != nil {
		return "", err
	}
	return challenge, nil
}

// Consume returns the outstanding challenge for the credential and deletes it
// in the same round trip, so a second consumer always misses.
func (s *ChallengeStore) Consume(ctx context.Context, credentialID string) (string, error) {
	val, err := s.rdb.GetDel(ctx, challengeKey(credentialID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrChallengeNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func challengeKey(credentialID string) string {
	return fmt.Sprintf("assertion:challenge:%s", credentialID)
}
