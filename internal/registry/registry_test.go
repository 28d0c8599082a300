package registry

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	reg := New()
	expiry := time.Now().Add(time.Minute)

	token, err := reg.Register("wss://valid", expiry)
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if len(token) != TokenBytes*2 {
		t.Errorf("Register() token length = %d, want %d", len(token), TokenBytes*2)
	}

	entry, ok := reg.Resolve(token)
	if !ok {
		t.Fatalf("Resolve() did not find freshly registered token")
	}
	if entry.Destination != "wss://valid" {
		t.Errorf("Resolve() destination = %q, want %q", entry.Destination, "wss://valid")
	}
	if !entry.ExpiresAt.Equal(expiry) {
		t.Errorf("Resolve() expiry = %v, want %v", entry.ExpiresAt, expiry)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return now }))

	tests := []struct {
		name        string
		destination string
		expiry      time.Time
	}{
		{name: "Empty Destination", destination: "", expiry: now.Add(time.Minute)},
		{name: "Past Expiry", destination: "wss://valid", expiry: now.Add(-time.Second)},
		{name: "Expiry Now", destination: "wss://valid", expiry: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := reg.Register(tt.destination, tt.expiry)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Register() error = %v, want ErrInvalidInput", err)
			}
			if token != "" {
				t.Errorf("Register() token = %q, want empty", token)
			}
		})
	}

	if reg.Len() != 0 {
		t.Errorf("Len() = %d after failed registrations, want 0", reg.Len())
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := New()
	if _, err := reg.Register("wss://valid", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	entry, ok := reg.Resolve("nonexistent-token")
	if ok {
		t.Errorf("Resolve() found unknown token: %+v", entry)
	}
	if entry.Destination != "" || !entry.ExpiresAt.IsZero() {
		t.Errorf("Resolve() returned non-zero entry for unknown token: %+v", entry)
	}
}

func TestRegistry_RegenerateOnCollision(t *testing.T) {
	tokens := []string{"dup", "dup", "", "fresh"}
	var calls int
	gen := func() (string, error) {
		tok := tokens[calls]
		calls++
		return tok, nil
	}
	reg := New(WithGenerator(gen))
	expiry := time.Now().Add(time.Minute)

	first, err := reg.Register("wss://a", expiry)
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	second, err := reg.Register("wss://b", expiry)
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	if first != "dup" || second != "fresh" {
		t.Errorf("Register() tokens = %q, %q, want %q, %q", first, second, "dup", "fresh")
	}
	if calls != 4 {
		t.Errorf("generator called %d times, want 4", calls)
	}
	if entry, _ := reg.Resolve("dup"); entry.Destination != "wss://a" {
		t.Errorf("collision overwrote first entry: %+v", entry)
	}
}

func TestRegistry_GeneratorExhausted(t *testing.T) {
	reg := New(WithGenerator(func() (string, error) { return "same", nil }))
	expiry := time.Now().Add(time.Minute)

	if _, err := reg.Register("wss://a", expiry); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if _, err := reg.Register("wss://b", expiry); !errors.Is(err, ErrTokenGenerator) {
		t.Errorf("Register() error = %v, want ErrTokenGenerator", err)
	}
}

func TestRegistry_ConcurrentRegisterUnique(t *testing.T) {
	reg := New()
	expiry := time.Now().Add(time.Minute)

	const workers = 32
	const perWorker = 64

	var wg sync.WaitGroup
	results := make(chan string, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				token, err := reg.Register("wss://valid", expiry)
				if err != nil {
					t.Errorf("Register() unexpected error: %v", err)
					return
				}
				results <- token
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{}, workers*perWorker)
	for token := range results {
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token issued: %s", token)
		}
		seen[token] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Errorf("got %d tokens, want %d", len(seen), workers*perWorker)
	}
	if reg.Len() != workers*perWorker {
		t.Errorf("Len() = %d, want %d", reg.Len(), workers*perWorker)
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	reg := New()
	token, err := reg.Register("wss://valid", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	snap := reg.Snapshot()
	entry := snap[token]
	entry.Destination = "wss://tampered"
	snap[token] = entry
	delete(snap, token)
	snap["injected"] = entry

	if got, _ := reg.Resolve(token); got.Destination != "wss://valid" {
		t.Errorf("Snapshot() mutation leaked into registry: %+v", got)
	}
	if _, ok := reg.Resolve("injected"); ok {
		t.Errorf("Snapshot() insertion leaked into registry")
	}
}

func TestRegistry_Purge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg := New(WithClock(func() time.Time { return now }))

	short, _ := reg.Register("wss://short", now.Add(time.Second))
	long, _ := reg.Register("wss://long", now.Add(time.Hour))

	if n := reg.Purge(now.Add(time.Minute)); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if _, ok := reg.Resolve(short); ok {
		t.Errorf("expired entry survived Purge()")
	}
	if _, ok := reg.Resolve(long); !ok {
		t.Errorf("live entry removed by Purge()")
	}
}
