package sessions

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/snowflake/v2"
)

type counter struct {
	id snowflake.ID
	n  int
}

func newCounter(id snowflake.ID) *counter { return &counter{id: id} }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry(t *testing.T) {
	const guild = snowflake.ID(1234567890)

	t.Run("Create", func(t *testing.T) {
		r := NewRegistry(newCounter)

		v, err := r.Create(guild)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.id != guild {
			t.Errorf("expected factory to receive %s, got %s", guild, v.id)
		}

		if _, err := r.Create(guild); !errors.Is(err, shared.ErrSessionExists) {
			t.Errorf("expected ErrSessionExists, got %v", err)
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 session, got %d", r.Len())
		}
	})

	t.Run("Get", func(t *testing.T) {
		r := NewRegistry(newCounter)

		if _, ok := r.Get(guild); ok {
			t.Error("expected no session before creation")
		}

		created, _ := r.Create(guild)
		created.n = 7

		got, ok := r.Get(guild)
		if !ok || got.n != 7 {
			t.Errorf("expected the created value, got %+v", got)
		}
	})

	t.Run("GetOrCreate", func(t *testing.T) {
		r := NewRegistry(newCounter)

		first, created := r.GetOrCreate(guild)
		if !created {
			t.Error("expected first call to create")
		}
		second, created := r.GetOrCreate(guild)
		if created {
			t.Error("expected second call to reuse")
		}
		if first != second {
			t.Error("expected the same value")
		}
	})

	t.Run("Evict", func(t *testing.T) {
		var evicted []snowflake.ID
		r := NewRegistry(newCounter, WithOnEvict(func(id snowflake.ID, _ *counter) {
			evicted = append(evicted, id)
		}))

		r.GetOrCreate(guild)
		if !r.Evict(guild) {
			t.Error("expected eviction to report true")
		}
		if r.Evict(guild) {
			t.Error("expected second eviction to report false")
		}
		if r.Len() != 0 {
			t.Errorf("expected empty registry, got %d", r.Len())
		}
		if len(evicted) != 1 || evicted[0] != guild {
			t.Errorf("expected one eviction callback for %s, got %v", guild, evicted)
		}

		if _, created := r.GetOrCreate(guild); !created {
			t.Error("expected a fresh value after eviction")
		}
	})

	t.Run("EvictIdle", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		r := NewRegistry(newCounter, WithClock[*counter](clock.Now))

		r.GetOrCreate(1)
		r.GetOrCreate(2)
		clock.Advance(20 * time.Minute)
		r.Get(2)
		r.GetOrCreate(3)
		clock.Advance(15 * time.Minute)

		if n := r.EvictIdle(30 * time.Minute); n != 1 {
			t.Errorf("expected 1 idle eviction, got %d", n)
		}
		if _, ok := r.Get(1); ok {
			t.Error("expected session 1 to be evicted")
		}
		for _, id := range []snowflake.ID{2, 3} {
			if _, ok := r.Get(id); !ok {
				t.Errorf("expected session %s to survive", id)
			}
		}
	})

	t.Run("Range", func(t *testing.T) {
		r := NewRegistry(newCounter)
		for _, id := range []snowflake.ID{1, 2, 3} {
			r.GetOrCreate(id)
		}

		seen := 0
		r.Range(func(id snowflake.ID, v *counter) bool {
			seen++
			r.Evict(id)
			return true
		})
		if seen != 3 {
			t.Errorf("expected 3 values, got %d", seen)
		}
		if r.Len() != 0 {
			t.Errorf("expected Range callbacks to evict everything, got %d left", r.Len())
		}

		r.GetOrCreate(1)
		r.GetOrCreate(2)
		calls := 0
		r.Range(func(snowflake.ID, *counter) bool {
			calls++
			return false
		})
		if calls != 1 {
			t.Errorf("expected Range to stop after false, got %d calls", calls)
		}
	})

	t.Run("concurrent GetOrCreate builds one value", func(t *testing.T) {
		var (
			mu     sync.Mutex
			builds int
		)
		r := NewRegistry(func(id snowflake.ID) *counter {
			mu.Lock()
			builds++
			mu.Unlock()
			return newCounter(id)
		})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.GetOrCreate(guild)
			}()
		}
		wg.Wait()

		if builds != 1 {
			t.Errorf("expected 1 build, got %d", builds)
		}
	})
}
