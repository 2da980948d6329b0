package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock wait timed out")

// Local is an in-process keyed mutex. It only serializes callers within one
// process; use Redis when several API instances share a database.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[string]*slot
}

type slot struct {
	held chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, locks: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	l.mu.Lock()
	s := l.locks[key]
	if s == nil {
		s = &slot{held: make(chan struct{}, 1)}
		l.locks[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.held
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		return nil, ctx.Err()
	}
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.locks, key)
	}
}

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder cannot free a lock taken over by someone else.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis is a lease lock built on SET NX with a TTL. The TTL bounds how long a
// crashed holder can block a booking.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	token   func() string
	loggerf func(format string, args ...interface{})
}

func NewRedis(client *redis.Client, ttl, wait time.Duration, loggerf func(format string, args ...interface{})) *Redis {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Redis{
		client:  client,
		prefix:  "lock:",
		ttl:     ttl,
		wait:    wait,
		retry:   25 * time.Millisecond,
		token:   uuid.NewString,
		loggerf: loggerf,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	token := r.token()

	waitCtx := ctx
	if r.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	for {
		ok, err := r.client.SetNX(waitCtx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", name, err)
		}
		if ok {
			return func() { r.unlock(name, token) }, nil
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
			}
			return nil, waitCtx.Err()
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) unlock(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := r.client.Eval(ctx, releaseScript, []string{name}, token).Int64()
	if err != nil {
		r.loggerf("level=error msg=redis unlock failed key=%s err=%v", name, err)
		return
	}
	if n == 0 {
		r.loggerf("level=warn msg=redis lock expired before unlock key=%s", name)
	}
}

// Ping checks the Redis connection at startup.
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
