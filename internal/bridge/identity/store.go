// Package identity owns the device pairing token: generated once from a
// CSPRNG, persisted to a small JSON state file, regenerated only on an
// explicit reset.
package identity

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opensquawk/simbridge/pkg/log"
)

// ErrPersistUnavailable wraps state-file failures. The store keeps working
// with an in-memory token when it is returned internally; it is exported so
// callers can detect degraded operation if they care.
var ErrPersistUnavailable = errors.New("identity: token persistence unavailable")

// tokenBytes gives 192 bits of entropy, encoded to 32 base64url characters.
const tokenBytes = 24

// state is the persisted document.
type state struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store loads or creates the pairing token. Safe for concurrent use.
type Store struct {
	path string

	mu      sync.Mutex
	token   string
	memOnly bool
}

// NewStore creates a store backed by the given state-file path. An empty
// path forces in-memory operation.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// EnsureToken returns the persisted token when present and well-formed,
// otherwise generates, persists, and returns a new one. It never fails:
// when persistence is unavailable the token lives in memory for the
// process lifetime and a warning is logged once.
func (s *Store) EnsureToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token
	}

	if loaded, ok := s.load(); ok {
		s.token = loaded
		return s.token
	}

	s.token = generateToken()
	s.persist()
	return s.token
}

// ResetToken unconditionally generates and persists a new token. The caller
// is responsible for downgrading link state to unlinked.
func (s *Store) ResetToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = generateToken()
	s.persist()
	return s.token
}

// MemoryOnly reports whether the store fell back to an in-memory token.
func (s *Store) MemoryOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memOnly
}

func (s *Store) load() (string, bool) {
	if s.path == "" {
		return "", false
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return "", false
	}
	if !ValidToken(st.Token) {
		return "", false
	}
	return st.Token, true
}

func (s *Store) persist() {
	if err := s.write(); err != nil {
		s.memOnly = true
		log.Warn("Token persistence unavailable, using in-memory token for this process",
			"path", s.path, "error", err)
		return
	}
	s.memOnly = false
}

func (s *Store) write() error {
	if s.path == "" {
		return fmt.Errorf("%w: no state file configured", ErrPersistUnavailable)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistUnavailable, err)
		}
	}
	raw, err := json.MarshalIndent(state{Token: s.token, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistUnavailable, err)
	}
	return nil
}

func generateToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("identity: csprng read: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ValidToken accepts the current strong-random shape and the legacy
// six-letter pairing code, so pairings made by older bridges survive.
func ValidToken(token string) bool {
	if isLegacyCode(token) {
		return true
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return len(raw) >= 16 // at least 128 bits
}

func isLegacyCode(token string) bool {
	if len(token) != 6 {
		return false
	}
	for _, r := range token {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
