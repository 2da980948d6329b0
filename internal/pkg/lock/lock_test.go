package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "booking:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.locks)
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "booking:1")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, "booking:2")
	require.NoError(t, err)
	unlockB()
}

func TestLocal_WaitTimeout(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "booking:1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "booking:1")
	assert.True(t, errors.Is(err, ErrLockTimeout))

	unlock()
	unlock() // second call is ignored

	unlock, err = l.Lock(ctx, "booking:1")
	require.NoError(t, err)
	unlock()
	assert.Empty(t, l.locks)
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal(0)

	unlock, err := l.Lock(context.Background(), "booking:1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "booking:1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func newTestRedis(t *testing.T, wait, retry time.Duration) (*Redis, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, 10*time.Second, wait, nil)
	r.retry = retry
	r.token = func() string { return "tok-1" }
	return r, mock
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	r, mock := newTestRedis(t, time.Second, 5*time.Millisecond)

	mock.ExpectSetNX("lock:booking:7", "tok-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"lock:booking:7"}, "tok-1").SetVal(int64(1))

	unlock, err := r.Lock(context.Background(), "booking:7")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_RetriesWhileHeld(t *testing.T) {
	r, mock := newTestRedis(t, time.Second, 5*time.Millisecond)

	mock.ExpectSetNX("lock:booking:7", "tok-1", 10*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:booking:7", "tok-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"lock:booking:7"}, "tok-1").SetVal(int64(1))

	unlock, err := r.Lock(context.Background(), "booking:7")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_WaitTimeout(t *testing.T) {
	r, mock := newTestRedis(t, 20*time.Millisecond, 200*time.Millisecond)

	mock.ExpectSetNX("lock:booking:7", "tok-1", 10*time.Second).SetVal(false)

	_, err := r.Lock(context.Background(), "booking:7")
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SetNXError(t *testing.T) {
	r, mock := newTestRedis(t, time.Second, 5*time.Millisecond)

	mock.ExpectSetNX("lock:booking:7", "tok-1", 10*time.Second).SetErr(errors.New("connection refused"))

	_, err := r.Lock(context.Background(), "booking:7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, Ping(context.Background(), db))

	mock.ExpectPing().SetErr(errors.New("down"))
	err := Ping(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
