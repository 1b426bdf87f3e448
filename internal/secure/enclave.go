package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is read.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer keeps a credential or session token encrypted in memory.
// It wraps memguard.Enclave; plaintext only exists inside the LockedBuffer
// returned by Open, or transiently inside Reveal.
//
// memguard.NewEnclave refuses empty input, so an empty secret is tracked with a
// flag instead of an enclave.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewSecureBuffer seals data into a new buffer. memguard wipes data in the
// process, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return &SecureBuffer{empty: true}, nil
	}
	return &SecureBuffer{enclave: memguard.NewEnclave(data)}, nil
}

// NewSecureString seals s. The string itself cannot be wiped; use this for
// values that arrive as strings from configuration or API responses.
func NewSecureString(s string) *SecureBuffer {
	// NewSecureBuffer never fails
	buf, _ := NewSecureBuffer([]byte(s))
	return buf
}

// Open decrypts the buffer into a LockedBuffer. The caller MUST Destroy it.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.empty {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Reveal returns a plaintext copy of the secret. Needed where a library takes
// the credential as a string (HTTP headers, login payloads).
func (s *SecureBuffer) Reveal() (string, error) {
	if s == nil {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return "", ErrDestroyed
	}
	if s.empty {
		return "", nil
	}
	locked, err := s.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// IsEmpty reports whether the buffer holds no data. Destroyed buffers are empty.
func (s *SecureBuffer) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.empty || s.destroyed
}

// Destroy drops the enclave. Idempotent; later reads return ErrDestroyed.
// Call memguard.Purge at process exit to wipe every remaining enclave key.
func (s *SecureBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}
