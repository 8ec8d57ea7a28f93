package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	calls     atomic.Int32
	customers map[string]models.Customer
	err       error
}

func (c *countingDirectory) Lookup(_ context.Context, phone string) (*models.Customer, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	cust, ok := c.customers[phone]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	return &cust, nil
}

func newCountingDirectory() *countingDirectory {
	return &countingDirectory{customers: map[string]models.Customer{
		"9999999901": {
			Name:             "Rahul Sharma",
			Phone:            "9999999901",
			PreApprovedLimit: decimal.NewFromInt(500000),
			CreditScore:      780,
			Salary:           decimal.NewFromInt(100000),
		},
	}}
}

func TestCachedDirectory_CachesHits(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	next := newCountingDirectory()

	dir := NewCachedDirectory(next, rdb, time.Minute, logger.NewNoOpLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c, err := dir.Lookup(ctx, "9999999901")
		require.NoError(t, err)
		assert.Equal(t, "Rahul Sharma", c.Name)
	}
	assert.Equal(t, int32(1), next.calls.Load())
	assert.True(t, mr.Exists("loan:customer:9999999901"))
	assert.Equal(t, time.Minute, mr.TTL("loan:customer:9999999901"))

	require.NoError(t, dir.Invalidate(ctx, "9999999901"))
	_, err := dir.Lookup(ctx, "9999999901")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedDirectory_DoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	next := newCountingDirectory()

	dir := NewCachedDirectory(next, rdb, time.Minute, logger.NewNoOpLogger())

	for i := 0; i < 2; i++ {
		_, err := dir.Lookup(context.Background(), "1234567890")
		assert.ErrorIs(t, err, models.ErrCustomerNotFound)
	}
	assert.Equal(t, int32(2), next.calls.Load())
	assert.False(t, mr.Exists("loan:customer:1234567890"))
}

func TestCachedDirectory_RedisDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	dir := NewCachedDirectory(newCountingDirectory(), rdb, time.Minute, logger.NewNoOpLogger())

	c, err := dir.Lookup(context.Background(), "9999999901")
	require.NoError(t, err)
	assert.Equal(t, "Rahul Sharma", c.Name)
}

func TestCachedDirectory_PropagatesOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	next := &countingDirectory{err: errors.New("db down")}

	_, err := NewCachedDirectory(next, rdb, time.Minute, logger.NewNoOpLogger()).
		Lookup(context.Background(), "9999999901")
	assert.EqualError(t, err, "db down")
}

func TestCachedDirectory_ConcurrentCallersGetCopies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	dir := NewCachedDirectory(newCountingDirectory(), rdb, time.Minute, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	results := make([]*models.Customer, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := dir.Lookup(context.Background(), "9999999901")
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	results[0].Name = "changed"
	for _, c := range results[1:] {
		assert.Equal(t, "Rahul Sharma", c.Name)
	}
}

// gatedDirectory blocks its first lookup until released and reports the
// context error seen when that lookup finishes.
type gatedDirectory struct {
	*countingDirectory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	seen    chan error
}

func (g *gatedDirectory) Lookup(ctx context.Context, phone string) (*models.Customer, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
		g.seen <- ctx.Err()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return g.countingDirectory.Lookup(ctx, phone)
}

func TestCachedDirectory_CancelledCallerDoesNotFailOthers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	next := &gatedDirectory{
		countingDirectory: newCountingDirectory(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
		seen:              make(chan error, 1),
	}
	dir := NewCachedDirectory(next, rdb, time.Minute, logger.NewNoOpLogger())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := dir.Lookup(firstCtx, "9999999901")
		firstErr <- err
	}()
	<-next.entered

	type result struct {
		c   *models.Customer
		err error
	}
	second := make(chan result, 1)
	go func() {
		c, err := dir.Lookup(context.Background(), "9999999901")
		second <- result{c, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(next.release)
	assert.NoError(t, <-next.seen)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Rahul Sharma", got.c.Name)
}
