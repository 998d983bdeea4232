package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config controls GORM/PostgreSQL connectivity.
type Config struct {
	DSN              string
	MaxIdleConns     int
	MaxOpenConns     int
	ConnMaxLifetime  time.Duration
	PingTimeout      time.Duration
	StatementTimeout time.Duration
	ReadOnly         bool
	MaxResultRows    int
	LogLevel         gormlogger.LogLevel
}

// Connect initializes a GORM connection using the provided config.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Pool owns the connection to the target database and replaces it when it
// stops answering pings.
type Pool struct {
	mu          sync.RWMutex
	db          *gorm.DB
	cfg         Config
	connect     func(Config) (*gorm.DB, error)
	onReconnect func()
	log         zerolog.Logger
}

// PoolOption customises a Pool.
type PoolOption func(*Pool)

// WithReconnectHook registers a callback run after every successful reconnect.
func WithReconnectHook(fn func()) PoolOption {
	return func(p *Pool) {
		p.onReconnect = fn
	}
}

// NewPool connects and returns a pool ready for use.
func NewPool(cfg Config, log zerolog.Logger, opts ...PoolOption) (*Pool, error) {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	p := &Pool{
		cfg:     cfg,
		connect: Connect,
		log:     log.With().Str("component", "database").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	db, err := p.connect(cfg)
	if err != nil {
		return nil, err
	}
	p.db = db
	return p, nil
}

// Config returns the pool settings.
func (p *Pool) Config() Config {
	return p.cfg
}

// DB returns a live handle, reconnecting first when the current one fails
// its ping.
func (p *Pool) DB(ctx context.Context) (*gorm.DB, error) {
	db, err := p.borrow(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// borrow returns the shared handle after a health check. A handle that fails
// the check is replaced at most once, however many callers observed it.
func (p *Pool) borrow(ctx context.Context) (*gorm.DB, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()

	err := p.ping(ctx, db)
	if err == nil {
		return db, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.log.Warn().Err(err).Msg("database ping failed, reconnecting")
	return p.replace(db)
}

// Ping checks the current connection without reconnecting.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ping(ctx, p.db)
}

func (p *Pool) ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database is not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, p.cfg.PingTimeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

// Reconnect discards the current connection and opens a fresh one.
func (p *Pool) Reconnect() error {
	p.mu.RLock()
	current := p.db
	p.mu.RUnlock()
	_, err := p.replace(current)
	return err
}

// replace swaps stale for a fresh connection. When another caller already
// replaced stale, the current handle is returned untouched.
func (p *Pool) replace(stale *gorm.DB) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != stale {
		return p.db, nil
	}

	fresh, err := p.connect(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("reconnect database: %w", err)
	}
	p.db = fresh

	if stale != nil {
		if sqlDB, err := stale.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if p.onReconnect != nil {
		p.onReconnect()
	}
	p.log.Info().Msg("database reconnected")
	return fresh, nil
}

// Close releases the underlying connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withRetry runs fn once and, when the failure did not come from the
// server, replaces the handle fn ran on and runs it a second time.
func (p *Pool) withRetry(ctx context.Context, fn func(*gorm.DB) error) error {
	db, err := p.borrow(ctx)
	if err != nil {
		return err
	}
	err = fn(db.WithContext(ctx))
	if err == nil || IsServerError(err) || ctx.Err() != nil {
		return err
	}

	p.log.Warn().Err(err).Msg("database call failed, retrying on a fresh connection")
	fresh, rerr := p.replace(db)
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	return fn(fresh.WithContext(ctx))
}

// IsServerError reports whether err was raised by PostgreSQL itself, as
// opposed to a broken connection.
func IsServerError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

// Describe renders a database error for the model, including the SQLSTATE
// when the server supplied one.
func Describe(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		text := pgErr.Message
		if pgErr.Detail != "" {
			text += ": " + pgErr.Detail
		}
		if pgErr.Hint != "" {
			text += " (hint: " + pgErr.Hint + ")"
		}
		return fmt.Sprintf("%s [SQLSTATE %s]", text, pgErr.Code)
	}
	return err.Error()
}
