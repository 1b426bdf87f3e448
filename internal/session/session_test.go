package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/tests/fakes"
)

func TestGuaranteedValidity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		maxRetries    int
		read          time.Duration
		open          time.Duration
		retryInterval time.Duration
		want          time.Duration
	}{
		{"typical", 5, 2 * time.Second, 2 * time.Second, time.Second, 25 * time.Second},
		{"capped", 5, 20 * time.Second, 5 * time.Second, time.Second, MaxGuaranteedValidity},
		{"exactly at cap", 5, 10 * time.Second, time.Second, time.Second, MaxGuaranteedValidity},
		{"no retries", 0, 20 * time.Second, 5 * time.Second, time.Second, 0},
		{"truncated to seconds", 1, 1500 * time.Millisecond, 0, 0, time.Second},
		{"sub-second parts", 3, 1500 * time.Millisecond, time.Second, 500 * time.Millisecond, 7 * time.Second},
		{"half-second retry interval", 5, 2 * time.Second, 2 * time.Second, 500 * time.Millisecond, 20 * time.Second},
		{"retry interval in whole seconds", 5, 2 * time.Second, 2 * time.Second, 1500 * time.Millisecond, 25 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GuaranteedValidity(tt.maxRetries, tt.read, tt.open, tt.retryInterval)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newManager(t *testing.T, client *fakes.FakeVaultClient, margin time.Duration) (*Manager, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	m := New(client, margin, logging.NewWithWriter(&buf, true, true), metrics.NewRecorder())
	require.NoError(t, m.Login(context.Background()))
	client.ResetCalls()
	return m, &buf
}

func TestManager_Login(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	client.LoginToken = vault.Token{Value: "s.first", TTL: 30 * time.Minute}

	m := New(client, 25*time.Second, nil, nil)
	assert.False(t, m.State().LoggedIn)
	assert.Empty(t, m.CurrentToken())

	require.NoError(t, m.Login(context.Background()))
	assert.Equal(t, "s.first", m.CurrentToken())
	assert.Equal(t, "s.first", client.CurrentToken)

	state := m.State()
	assert.True(t, state.LoggedIn)
	assert.Equal(t, 30*time.Minute, state.TTL)
	assert.Equal(t, 25*time.Second, state.GuaranteedValidity)
	assert.False(t, state.ExpiresAt.IsZero())
}

func TestManager_LoginFailureKeepsPreviousToken(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	client.LoginToken = vault.Token{Value: "s.first", TTL: time.Hour}
	m, _ := newManager(t, client, 25*time.Second)

	client.LoginErr = vault.ErrAuthFailed
	err := m.Login(context.Background())
	assert.ErrorIs(t, err, vault.ErrAuthFailed)
	assert.Equal(t, "s.first", m.CurrentToken())
	assert.Equal(t, "s.first", client.CurrentToken)
}

func TestManager_RenewalThreshold(t *testing.T) {
	t.Parallel()

	margin := GuaranteedValidity(5, 2*time.Second, 2*time.Second, time.Second)
	require.Equal(t, 25*time.Second, margin)

	tests := []struct {
		name       string
		ttl        time.Duration
		wantLogins int
	}{
		{"expiring", 20 * time.Second, 1},
		{"at margin", 25 * time.Second, 1},
		{"fresh", 1312 * time.Second, 0},
		{"never expires", vault.NoExpiry, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := fakes.NewFakeVaultClient()
			m, _ := newManager(t, client, margin)
			client.SetTTL(tt.ttl)

			require.NoError(t, m.EnsureValid(context.Background()))
			assert.Equal(t, 1, client.Calls("lookup-self"))
			assert.Equal(t, tt.wantLogins, client.Calls("login"))
			assert.Equal(t, tt.wantLogins, m.State().Renewals)
		})
	}
}

func TestManager_NoExpiryState(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	client.LoginToken = vault.Token{Value: "s.root", TTL: vault.NoExpiry}
	m := New(client, 25*time.Second, nil, nil)
	require.NoError(t, m.Login(context.Background()))

	assert.True(t, m.State().ExpiresAt.IsZero())
}

func TestManager_RenewsRejectedToken(t *testing.T) {
	metrics.InitMetrics()

	client := fakes.NewFakeVaultClient()
	m, _ := newManager(t, client, 25*time.Second)

	before := testutil.ToFloat64(metrics.GetSessionRenewalsTotal().WithLabelValues(metrics.ReasonRejected))

	client.LookupErr = fmt.Errorf("token lookup failed: %w", vault.ErrPermissionDenied)
	client.LoginToken = vault.Token{Value: "s.second", TTL: time.Hour}

	require.NoError(t, m.EnsureValid(context.Background()))
	assert.Equal(t, 1, client.Calls("login"))
	assert.Equal(t, "s.second", m.CurrentToken())
	assert.Equal(t, "s.second", client.CurrentToken)

	after := testutil.ToFloat64(metrics.GetSessionRenewalsTotal().WithLabelValues(metrics.ReasonRejected))
	assert.Equal(t, before+1, after)
}

func TestManager_LookupFailureKeepsSession(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	m, buf := newManager(t, client, 25*time.Second)
	client.LookupErr = errors.New("connection refused")

	require.NoError(t, m.EnsureValid(context.Background()))
	assert.Equal(t, 0, client.Calls("login"))
	assert.Equal(t, "s.fake", m.CurrentToken())
	assert.Contains(t, buf.String(), "Token lookup failed")
}

func TestManager_RenewalFailure(t *testing.T) {
	metrics.InitMetrics()

	client := fakes.NewFakeVaultClient()
	m, _ := newManager(t, client, 25*time.Second)

	before := testutil.ToFloat64(metrics.GetSessionRenewalFailuresTotal())

	client.SetTTL(5 * time.Second)
	client.LoginErr = vault.ErrAuthFailed

	err := m.EnsureValid(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrAuthFailed)
	assert.Equal(t, "s.fake", m.CurrentToken())
	assert.Equal(t, 0, m.State().Renewals)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GetSessionRenewalFailuresTotal()))
}

func TestManager_ConcurrentEnsureValid(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	m, _ := newManager(t, client, 25*time.Second)
	client.SetTTL(20 * time.Second)
	client.LoginFunc = func(ctx context.Context) (vault.Token, error) {
		// a fresh token reports a long TTL on the next lookup
		client.SetTTL(time.Hour)
		return vault.Token{Value: "s.renewed", TTL: time.Hour}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.EnsureValid(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, client.Calls("login"))
	assert.Equal(t, 20, client.Calls("lookup-self"))
	assert.Equal(t, "s.renewed", m.CurrentToken())
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	m, _ := newManager(t, client, 25*time.Second)

	m.Close()
	assert.Empty(t, m.CurrentToken())
	assert.Empty(t, client.CurrentToken)
	assert.False(t, m.State().LoggedIn)
}
