// Package session keeps one authenticated backend session alive.
//
// The Manager holds the live token and renews it whenever the remaining TTL
// drops to the guaranteed validity margin or the server rejects it. The
// margin is the worst-case time a single request can take including client
// retries, so a token that passed EnsureValid outlives the request that
// follows.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/secure"
	"github.com/systmms/vaultstore/internal/vault"
)

// MaxGuaranteedValidity caps the renewal margin
const MaxGuaranteedValidity = 60 * time.Second

// Authenticator is the part of the backend client the session needs
type Authenticator interface {
	Login(ctx context.Context) (vault.Token, error)
	LookupSelf(ctx context.Context) (time.Duration, error)
	SetToken(token string)
}

// State is a snapshot of the session. The token itself is only available
// through Manager.CurrentToken.
type State struct {
	TTL                time.Duration
	GuaranteedValidity time.Duration
	ExpiresAt          time.Time // zero for tokens without expiry
	Renewals           int
	LoggedIn           bool
}

// GuaranteedValidity returns the renewal margin for the given client
// settings: maxRetries × (read + open + retry interval), capped at
// MaxGuaranteedValidity and truncated to whole seconds. The retry interval
// counts in whole seconds only, so 500ms adds nothing and 1500ms adds 1s.
func GuaranteedValidity(maxRetries int, readTimeout, openTimeout, retryInterval time.Duration) time.Duration {
	if maxRetries <= 0 {
		return 0
	}
	perAttempt := readTimeout + openTimeout + retryInterval.Truncate(time.Second)
	if perAttempt <= 0 {
		return 0
	}
	if perAttempt > MaxGuaranteedValidity/time.Duration(maxRetries) {
		return MaxGuaranteedValidity
	}
	return (time.Duration(maxRetries) * perAttempt).Truncate(time.Second)
}

// Manager owns the session state. Lookup and renewal happen under one lock,
// so at most one renewal is in flight.
type Manager struct {
	mu      sync.Mutex
	client  Authenticator
	margin  time.Duration
	logger  *logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	token     *secure.SecureBuffer
	ttl       time.Duration
	expiresAt time.Time
	renewals  int
}

// New creates a manager. Call Login before the first request.
func New(client Authenticator, margin time.Duration, logger *logging.Logger, recorder *metrics.Recorder) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		client:  client,
		margin:  margin,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// Login performs a fresh login and installs the new token. On failure the
// previous token stays in place.
func (m *Manager) Login(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginLocked(ctx)
}

func (m *Manager) loginLocked(ctx context.Context) error {
	token, err := m.client.Login(ctx)
	if err != nil {
		return err
	}

	m.client.SetToken(token.Value)
	previous := m.token
	m.token = secure.NewSecureString(token.Value)
	previous.Destroy()

	m.setTTL(token.TTL)
	m.logger.Debug("Session token %s installed, ttl %s", logging.Secret(token.Value), token.TTL)
	return nil
}

func (m *Manager) setTTL(ttl time.Duration) {
	m.ttl = ttl
	if ttl == vault.NoExpiry {
		m.expiresAt = time.Time{}
		return
	}
	m.expiresAt = m.now().Add(ttl)
}

// EnsureValid checks the live token and renews it when its TTL is at or
// below the margin, or when the server rejects it. Lookup failures other
// than a rejection are logged and the current token is kept. Renewal
// failures are returned.
func (m *Manager) EnsureValid(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ttl, err := m.client.LookupSelf(ctx)

	var reason string
	switch {
	case errors.Is(err, vault.ErrPermissionDenied):
		reason = metrics.ReasonRejected
	case err != nil:
		m.logger.Warn("Token lookup failed, keeping current session: %v", err)
		return nil
	case ttl <= m.margin:
		reason = metrics.ReasonExpiring
	default:
		m.setTTL(ttl)
		return nil
	}

	m.logger.Debug("Renewing session (%s, ttl %s, margin %s)", reason, ttl, m.margin)
	if err := m.loginLocked(ctx); err != nil {
		m.metrics.SessionRenewalFailed()
		return fmt.Errorf("session renewal failed: %w", err)
	}

	m.renewals++
	m.metrics.SessionRenewed(reason)
	return nil
}

// CurrentToken returns the live token, or "" before the first login
func (m *Manager) CurrentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, err := m.token.Reveal()
	if err != nil {
		return ""
	}
	return value
}

// State returns a snapshot of the session
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		TTL:                m.ttl,
		GuaranteedValidity: m.margin,
		ExpiresAt:          m.expiresAt,
		Renewals:           m.renewals,
		LoggedIn:           !m.token.IsEmpty(),
	}
}

// Close discards the token
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token.Destroy()
	m.token = nil
	m.client.SetToken("")
}
