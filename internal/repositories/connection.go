package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/shared"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 500 * time.Millisecond
)

// ConnState is the lifecycle state of a [Connection].
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// DialFunc opens and verifies a client for uri.
type DialFunc func(ctx context.Context, uri string) (*mongo.Client, error)

// Connection owns the document store client.
//
// Connect retries with exponential backoff up to MaxAttempts, each attempt bounded by the
// configured timeout. Callers waiting in [Connection.Database] are released when the
// connection settles and get [shared.ErrStoreUnavailable] instead of blocking forever.
type Connection struct {
	uri      string
	name     string
	attempts int
	timeout  time.Duration
	backoff  time.Duration
	dial     DialFunc
	logger   *log.Logger

	mu     sync.Mutex
	state  ConnState
	client *mongo.Client
	ready  chan struct{}
	err    error
}

// ConnectionOption configures a [Connection].
type ConnectionOption func(*Connection)

// WithDialer replaces the mongo dialer.
func WithDialer(d DialFunc) ConnectionOption {
	return func(c *Connection) { c.dial = d }
}

// WithBackoff sets the delay before the second attempt. It doubles on every retry.
func WithBackoff(d time.Duration) ConnectionOption {
	return func(c *Connection) { c.backoff = d }
}

// NewConnection creates a disconnected connection for c.
func NewConnection(c shared.MongoConfig, logger *log.Logger, opts ...ConnectionOption) *Connection {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	conn := &Connection{
		uri:      c.URL,
		name:     c.Database,
		attempts: attempts,
		timeout:  c.ConnectTimeout(),
		backoff:  defaultBackoff,
		dial:     dialMongo,
		logger:   shared.WithLogger(logger, "module", "db"),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

func dialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the store. It returns nil once connected and an error wrapping
// [shared.ErrStoreUnavailable] after the last failed attempt.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return nil
	case Connecting:
		ready := c.ready
		c.mu.Unlock()
		select {
		case <-ready:
			return c.Err()
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, ctx.Err())
		}
	case Failed:
		c.ready = make(chan struct{})
	}
	c.state = Connecting
	c.err = nil
	c.mu.Unlock()

	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := c.dial(actx, c.uri)
		cancel()
		if err == nil {
			c.settle(Connected, client, nil)
			c.logger.Info("connected to document store", "database", c.name, "attempt", attempt)
			return nil
		}

		lastErr = err
		c.logger.Warn("document store connection failed", "attempt", attempt, "of", c.attempts, "error", err)
		if attempt == c.attempts {
			break
		}

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.attempts
		}
	}

	err := fmt.Errorf("%w: gave up after %d attempts: %v", shared.ErrStoreUnavailable, c.attempts, lastErr)
	c.settle(Failed, nil, err)
	c.logger.Error("document store unavailable", "error", lastErr)
	return err
}

func (c *Connection) settle(state ConnState, client *mongo.Client, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.client = client
	c.err = err
	close(c.ready)
}

// Err returns the error that moved the connection to [Failed], if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Database returns the configured database, waiting up to the connect timeout for a
// connection in progress.
func (c *Connection) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	if c.state == Connected {
		db := c.client.Database(c.name)
		c.mu.Unlock()
		return db, nil
	}
	ready := c.ready
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		return nil, fmt.Errorf("%w: timed out waiting for connection", shared.ErrStoreUnavailable)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, ctx.Err())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected {
		if c.err != nil {
			return nil, c.err
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrStoreUnavailable, c.state)
	}
	return c.client.Database(c.name), nil
}

// Collection is shorthand for Database(ctx).Collection(name).
func (c *Connection) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Close disconnects the client. A closed connection may be connected again.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Connecting {
		return fmt.Errorf("%w: connection in progress", shared.ErrInvalidState)
	}

	var err error
	if c.client != nil {
		if derr := c.client.Disconnect(ctx); derr != nil && !errors.Is(derr, mongo.ErrClientDisconnected) {
			err = fmt.Errorf("failed to disconnect: %w", derr)
		}
		c.logger.Info("closed document store connection", "database", c.name)
	}
	if c.state != Disconnected {
		c.ready = make(chan struct{})
	}
	c.state = Disconnected
	c.client = nil
	c.err = nil
	return err
}
