// Package vault is the in-memory credential store. Secrets live only in
// process memory, carry an absolute TTL, and are represented by a type that
// redacts itself from every serialization path.
package vault

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL matches the re-prompt cadence of the credential collaborator.
const DefaultTTL = 30 * time.Minute

var (
	// ErrExpired is returned when a secret's TTL has elapsed. The caller is
	// expected to trigger a re-prompt; the entry is already gone.
	ErrExpired = errors.New("credential expired")

	// ErrNotFound is returned when no secret was ever stored for the kind.
	ErrNotFound = errors.New("credential not found")
)

// Secret wraps a credential value so it cannot leak through logging or
// serialization. fmt, JSON, and text marshaling all see "[redacted]";
// only Reveal returns the value.
type Secret struct {
	v string
}

func NewSecret(v string) Secret { return Secret{v: v} }

func (s Secret) Reveal() string { return s.v }

func (s Secret) String() string   { return "[redacted]" }
func (s Secret) GoString() string { return "vault.Secret{[redacted]}" }

func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"[redacted]"`), nil }
func (s Secret) MarshalText() ([]byte, error) { return []byte("[redacted]"), nil }

type entry struct {
	secret    Secret
	expiresAt time.Time
}

// Vault stores secrets keyed by kind (e.g. "chatgpt"). It is touched from
// the worker and from its own sweep loop, so every access takes the mutex.
type Vault struct {
	mu      sync.Mutex
	entries map[string]entry

	defaultTTL time.Duration
	now        func() time.Time // test hook
}

type Option func(*Vault)

func WithDefaultTTL(ttl time.Duration) Option {
	return func(v *Vault) {
		if ttl > 0 {
			v.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

func New(opts ...Option) *Vault {
	v := &Vault{
		entries:    map[string]entry{},
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Put stores a secret, overwriting any existing value for the kind.
// ttl <= 0 uses the vault default. The TTL is absolute: reads never extend it.
func (v *Vault) Put(kind, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = v.defaultTTL
	}
	v.mu.Lock()
	v.entries[kind] = entry{secret: NewSecret(value), expiresAt: v.now().Add(ttl)}
	v.mu.Unlock()
}

// Get returns the secret for kind. An expired entry is deleted and reported
// as ErrExpired so the caller can trigger a re-prompt.
func (v *Vault) Get(kind string) (Secret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[kind]
	if !ok {
		return Secret{}, ErrNotFound
	}
	if !v.now().Before(e.expiresAt) {
		delete(v.entries, kind)
		return Secret{}, ErrExpired
	}
	return e.secret, nil
}

// Delete removes a secret immediately (e.g. on leave).
func (v *Vault) Delete(kind string) {
	v.mu.Lock()
	delete(v.entries, kind)
	v.mu.Unlock()
}

// Clear removes every secret.
func (v *Vault) Clear() {
	v.mu.Lock()
	v.entries = map[string]entry{}
	v.mu.Unlock()
}

func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Sweep deletes expired entries and reports how many were removed. Called
// by the sweep loop so secrets do not linger past their TTL even if never
// read again.
func (v *Vault) Sweep() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	removed := 0
	for kind, e := range v.entries {
		if !now.Before(e.expiresAt) {
			delete(v.entries, kind)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given cadence until ctx is canceled.
func (v *Vault) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			v.Sweep()
		}
	}
}
