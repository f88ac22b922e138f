package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "reminders:lease"

// Only the holder's token may release the lease.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// CycleLease makes a named job run on at most one replica at a time.
type CycleLease struct {
	client goredis.UniversalClient
	token  func() string
}

func NewCycleLease(client goredis.UniversalClient) (*CycleLease, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &CycleLease{
		client: client,
		token:  func() string { return uuid.NewString() },
	}, nil
}

// Acquire takes the lease for ttl. It returns ok=false when another holder
// has it. The returned release func is safe to call more than once.
func (l *CycleLease) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := leaseKeyPrefix + ":" + name
	token := l.token()

	err = l.client.SetArgs(ctx, key, token, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, goredis.Nil) {
		return func() {}, false, nil
	}
	if err != nil {
		return func() {}, false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}

	release = func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
