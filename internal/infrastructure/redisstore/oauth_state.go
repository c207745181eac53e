// Package redisstore holds short-lived auth state in Redis.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

func keyOAuthState(state string) string { return "oauth:state:" + state }

type oauthState struct {
	CreatedAt time.Time `json:"created_at"`
}

// OAuthStateStore keeps OAuth state values until the callback consumes them.
type OAuthStateStore struct {
	rdb redis.Cmdable
}

func NewOAuthStateStore(rdb redis.Cmdable) *OAuthStateStore {
	return &OAuthStateStore{rdb: rdb}
}

func (s *OAuthStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	return helpers.RedisSetJSON(ctx, s.rdb, keyOAuthState(state), oauthState{CreatedAt: time.Now().UTC()}, ttl)
}

func (s *OAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	var v oauthState
	return helpers.RedisTakeJSON(ctx, s.rdb, keyOAuthState(state), &v)
}

var _ application.OAuthStateStore = (*OAuthStateStore)(nil)
