package repositories

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/shared"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func testMongoConfig(attempts int) shared.MongoConfig {
	return shared.MongoConfig{
		URL:         "mongodb://localhost:27017",
		Database:    "goose",
		MaxAttempts: attempts,
		Timeout:     "200ms",
	}
}

// lazyClient builds a client without touching the network.
func lazyClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestConnection(t *testing.T) {
	t.Run("connects after retries", func(t *testing.T) {
		var calls atomic.Int32
		client := lazyClient(t)
		dial := func(ctx context.Context, uri string) (*mongo.Client, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("connection refused")
			}
			return client, nil
		}

		conn := NewConnection(testMongoConfig(5), testLogger(), WithDialer(dial), WithBackoff(time.Millisecond))
		if conn.State() != Disconnected {
			t.Fatalf("expected disconnected, got %s", conn.State())
		}

		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("expected connection, got %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
		if conn.State() != Connected {
			t.Errorf("expected connected, got %s", conn.State())
		}

		db, err := conn.Database(context.Background())
		if err != nil {
			t.Fatalf("expected database, got %v", err)
		}
		if db.Name() != "goose" {
			t.Errorf("expected database goose, got %s", db.Name())
		}

		if err := conn.Connect(context.Background()); err != nil || calls.Load() != 3 {
			t.Error("connecting twice should be a no-op")
		}
	})

	t.Run("gives up after MaxAttempts", func(t *testing.T) {
		var calls atomic.Int32
		dial := func(ctx context.Context, uri string) (*mongo.Client, error) {
			calls.Add(1)
			return nil, errors.New("no reachable servers")
		}

		conn := NewConnection(testMongoConfig(3), testLogger(), WithDialer(dial), WithBackoff(time.Millisecond))
		err := conn.Connect(context.Background())
		if !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", calls.Load())
		}
		if conn.State() != Failed {
			t.Errorf("expected failed state, got %s", conn.State())
		}

		if _, err := conn.Database(context.Background()); !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable from Database, got %v", err)
		}
	})

	t.Run("each attempt is bounded by the timeout", func(t *testing.T) {
		dial := func(ctx context.Context, uri string) (*mongo.Client, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		conn := NewConnection(testMongoConfig(2), testLogger(), WithDialer(dial), WithBackoff(time.Millisecond))
		start := time.Now()
		if err := conn.Connect(context.Background()); !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("connect took %v, attempts were not bounded", elapsed)
		}
	})

	t.Run("database waits for connection in progress", func(t *testing.T) {
		release := make(chan struct{})
		client := lazyClient(t)
		dial := func(ctx context.Context, uri string) (*mongo.Client, error) {
			<-release
			return client, nil
		}

		cfg := testMongoConfig(1)
		cfg.Timeout = "2s"
		conn := NewConnection(cfg, testLogger(), WithDialer(dial))

		done := make(chan error, 1)
		go func() { done <- conn.Connect(context.Background()) }()

		for conn.State() != Connecting {
			time.Sleep(time.Millisecond)
		}

		waited := make(chan error, 1)
		go func() {
			_, err := conn.Database(context.Background())
			waited <- err
		}()

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("expected connection, got %v", err)
		}
		if err := <-waited; err != nil {
			t.Errorf("expected waiter to get the database, got %v", err)
		}
	})

	t.Run("database times out when never connected", func(t *testing.T) {
		cfg := testMongoConfig(1)
		cfg.Timeout = "20ms"
		conn := NewConnection(cfg, testLogger())

		if _, err := conn.Database(context.Background()); !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", err)
		}
	})

	t.Run("close and reconnect", func(t *testing.T) {
		client := lazyClient(t)
		dial := func(ctx context.Context, uri string) (*mongo.Client, error) {
			return client, nil
		}

		conn := NewConnection(testMongoConfig(1), testLogger(), WithDialer(dial))
		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("expected connection, got %v", err)
		}
		if err := conn.Close(context.Background()); err != nil {
			t.Fatalf("expected clean close, got %v", err)
		}
		if conn.State() != Disconnected {
			t.Errorf("expected disconnected, got %s", conn.State())
		}

		conn2 := NewConnection(testMongoConfig(1), testLogger(), WithDialer(func(ctx context.Context, uri string) (*mongo.Client, error) {
			return lazyClient(t), nil
		}))
		if err := conn2.Connect(context.Background()); err != nil {
			t.Fatalf("expected connection, got %v", err)
		}
	})

	t.Run("state names", func(t *testing.T) {
		tc := map[ConnState]string{
			Disconnected: "disconnected",
			Connecting:   "connecting",
			Connected:    "connected",
			Failed:       "failed",
		}
		for state, want := range tc {
			if state.String() != want {
				t.Errorf("expected %s, got %s", want, state.String())
			}
		}
	})
}
