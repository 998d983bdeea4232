package database

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsServerError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`}

	assert.True(t, IsServerError(pgErr))
	assert.True(t, IsServerError(fmt.Errorf("query: %w", pgErr)))
	assert.False(t, IsServerError(errors.New("unexpected EOF")))
}

func TestDescribe(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42703", Message: `column "nam" does not exist`, Hint: `Perhaps you meant "name".`}
	assert.Equal(t, `column "nam" does not exist (hint: Perhaps you meant "name".) [SQLSTATE 42703]`, Describe(fmt.Errorf("wrap: %w", pgErr)))
	assert.Equal(t, "conn reset", Describe(errors.New("conn reset")))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"orders"`, QuoteIdentifier("orders"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
}

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := Connect(Config{})
	assert.EqualError(t, err, "database DSN is empty")
}

func newFakePool(t *testing.T) (*Pool, *gorm.DB, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var connects, hooks atomic.Int32
	initial := &gorm.DB{Config: &gorm.Config{}}
	p := &Pool{
		db: initial,
		connect: func(Config) (*gorm.DB, error) {
			connects.Add(1)
			return &gorm.DB{Config: &gorm.Config{}}, nil
		},
		onReconnect: func() { hooks.Add(1) },
		log:         zerolog.Nop(),
	}
	return p, initial, &connects, &hooks
}

func TestPoolReplace_SameStaleHandleReconnectsOnce(t *testing.T) {
	p, dead, connects, hooks := newFakePool(t)

	first, err := p.replace(dead)
	require.NoError(t, err)
	second, err := p.replace(dead)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, dead, first)
	assert.Equal(t, int32(1), connects.Load())
	assert.Equal(t, int32(1), hooks.Load())
}

func TestPoolReplace_ConcurrentCallersShareFreshHandle(t *testing.T) {
	p, dead, connects, _ := newFakePool(t)

	const callers = 8
	handles := make([]*gorm.DB, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := p.replace(dead)
			assert.NoError(t, err)
			handles[i] = db
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), connects.Load())
	for _, db := range handles {
		assert.Same(t, handles[0], db)
	}
}

func TestPoolReplace_CurrentHandleIsReplaced(t *testing.T) {
	p, dead, connects, _ := newFakePool(t)

	h1, err := p.replace(dead)
	require.NoError(t, err)
	require.NoError(t, p.Reconnect())

	p.mu.RLock()
	current := p.db
	p.mu.RUnlock()
	assert.NotSame(t, h1, current)
	assert.Equal(t, int32(2), connects.Load())
}

func TestPoolReplace_ConnectFailureKeepsStaleHandle(t *testing.T) {
	p, dead, _, hooks := newFakePool(t)
	p.connect = func(Config) (*gorm.DB, error) { return nil, errors.New("connection refused") }

	_, err := p.replace(dead)
	require.ErrorContains(t, err, "connection refused")
	assert.Same(t, dead, p.db)
	assert.Equal(t, int32(0), hooks.Load())
}
