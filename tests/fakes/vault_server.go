package fakes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// LoginRequest records one call to an auth/<mount>/login endpoint
type LoginRequest struct {
	Path string
	Body map[string]interface{}
	TLS  bool
}

// FakeVaultServer is an in-process Vault HTTP API covering the KV engine,
// token lookup and login endpoints.
type FakeVaultServer struct {
	*httptest.Server

	// Mount is the KV mount served, e.g. "secret"
	Mount string
	// EngineVersion is 1 or 2
	EngineVersion int

	// TokenTTL is reported (in seconds) by lookup-self; -1 means no expiry
	TokenTTL int
	// LoginTTL is the lease duration (in seconds) of tokens issued by login
	LoginTTL int
	// RejectLogins makes every login return 400
	RejectLogins bool
	// Fail forces a status code for a request path (without /v1/)
	Fail map[string]int

	mu       sync.Mutex
	secrets  map[string]map[string]interface{}
	deleted  map[string]bool
	tokens   map[string]bool
	issued   int
	logins   []LoginRequest
	requests []string
}

// NewFakeVaultServer starts a server accepting rootToken. The server is
// closed when the test ends.
func NewFakeVaultServer(t testing.TB, mount string, engineVersion int, rootToken string) *FakeVaultServer {
	t.Helper()

	f := &FakeVaultServer{
		Mount:         strings.Trim(mount, "/"),
		EngineVersion: engineVersion,
		TokenTTL:      3600,
		LoginTTL:      3600,
		Fail:          make(map[string]int),
		secrets:       make(map[string]map[string]interface{}),
		deleted:       make(map[string]bool),
		tokens:        map[string]bool{rootToken: true},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

// Put stores a secret at a logical path (relative to the mount)
func (f *FakeVaultServer) Put(path string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[strings.Trim(path, "/")] = data
	delete(f.deleted, strings.Trim(path, "/"))
}

// Get returns the secret stored at a logical path
func (f *FakeVaultServer) Get(path string) (map[string]interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.secrets[strings.Trim(path, "/")]
	return data, ok
}

// SoftDelete marks the latest KV v2 version deleted while keeping metadata
func (f *FakeVaultServer) SoftDelete(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[strings.Trim(path, "/")] = true
}

// RevokeAll invalidates every token, including the root token
func (f *FakeVaultServer) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]bool)
}

// SetTokenTTL changes the TTL reported by lookup-self
func (f *FakeVaultServer) SetTokenTTL(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TokenTTL = seconds
}

// SetLoginTTL changes the lease duration of tokens issued by login
func (f *FakeVaultServer) SetLoginTTL(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginTTL = seconds
}

// Logins returns the login calls seen so far
func (f *FakeVaultServer) Logins() []LoginRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LoginRequest(nil), f.logins...)
}

// Requests returns "METHOD path" for every request seen so far
func (f *FakeVaultServer) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeVaultServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	method := r.Method
	if method == http.MethodGet && r.URL.Query().Get("list") == "true" {
		method = "LIST"
	}

	f.mu.Lock()
	f.requests = append(f.requests, method+" "+path)
	status, forced := f.Fail[path]
	f.mu.Unlock()

	if forced {
		writeErrors(w, status, "forced failure")
		return
	}

	if strings.HasPrefix(path, "auth/") && strings.Contains(path, "/login") {
		f.handleLogin(w, r, path)
		return
	}

	if !f.authorized(r) {
		writeErrors(w, http.StatusForbidden, "permission denied")
		return
	}

	if path == "auth/token/lookup-self" {
		f.handleLookupSelf(w)
		return
	}

	logical, kind, ok := f.logicalPath(path)
	if !ok {
		writeErrors(w, http.StatusNotFound, "no handler for route")
		return
	}

	switch method {
	case "LIST":
		f.handleList(w, logical)
	case http.MethodGet:
		f.handleRead(w, logical)
	case http.MethodPost, http.MethodPut:
		f.handleWrite(w, r, logical)
	case http.MethodDelete:
		f.mu.Lock()
		delete(f.secrets, logical)
		if kind == "data" {
			f.deleted[logical] = true
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrors(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

// logicalPath strips the mount and, for KV v2, the data/metadata segment
func (f *FakeVaultServer) logicalPath(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, f.Mount)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", "", false
	}
	rest = strings.Trim(rest, "/")
	if f.EngineVersion != 2 {
		return rest, "", true
	}
	kind, logical, _ := strings.Cut(rest, "/")
	if kind != "data" && kind != "metadata" {
		return "", "", false
	}
	return strings.Trim(logical, "/"), kind, true
}

func (f *FakeVaultServer) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[r.Header.Get("X-Vault-Token")]
}

func (f *FakeVaultServer) handleLookupSelf(w http.ResponseWriter) {
	f.mu.Lock()
	ttl := f.TokenTTL
	f.mu.Unlock()

	data := map[string]interface{}{"ttl": ttl, "renewable": true, "expire_time": "2030-01-01T00:00:00Z"}
	if ttl < 0 {
		data["ttl"] = 0
		data["expire_time"] = nil
		data["renewable"] = false
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func (f *FakeVaultServer) handleLogin(w http.ResponseWriter, r *http.Request, path string) {
	body := map[string]interface{}{}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.logins = append(f.logins, LoginRequest{Path: path, Body: body, TLS: r.TLS != nil})
	if f.RejectLogins {
		f.mu.Unlock()
		writeErrors(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	f.issued++
	token := "s.issued-" + strconv.Itoa(f.issued)
	f.tokens[token] = true
	ttl := f.LoginTTL
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"auth": map[string]interface{}{
			"client_token":   token,
			"lease_duration": ttl,
			"renewable":      true,
		},
	})
}

func (f *FakeVaultServer) handleRead(w http.ResponseWriter, logical string) {
	f.mu.Lock()
	data, ok := f.secrets[logical]
	deleted := f.deleted[logical]
	f.mu.Unlock()

	if f.EngineVersion == 2 && deleted {
		// KV v2 answers 404 with metadata for a deleted version
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"data": map[string]interface{}{
				"data":     nil,
				"metadata": map[string]interface{}{"deletion_time": "2024-01-01T00:00:00Z", "version": 1},
			},
		})
		return
	}
	if !ok || deleted {
		writeErrors(w, http.StatusNotFound)
		return
	}

	if f.EngineVersion == 2 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 1},
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func (f *FakeVaultServer) handleWrite(w http.ResponseWriter, r *http.Request, logical string) {
	body := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if f.EngineVersion == 2 {
		inner, ok := body["data"].(map[string]interface{})
		if !ok {
			writeErrors(w, http.StatusBadRequest, "no data provided")
			return
		}
		body = inner
	}

	f.mu.Lock()
	f.secrets[logical] = body
	delete(f.deleted, logical)
	f.mu.Unlock()

	if f.EngineVersion == 2 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"version": 1}})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeVaultServer) handleList(w http.ResponseWriter, logical string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := ""
	if logical != "" {
		prefix = logical + "/"
	}

	seen := make(map[string]bool)
	for key := range f.secrets {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		if head, _, nested := strings.Cut(rest, "/"); nested {
			seen[head+"/"] = true
		} else {
			seen[rest] = true
		}
	}

	if len(seen) == 0 {
		writeErrors(w, http.StatusNotFound)
		return
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"keys": keys}})
}

func writeErrors(w http.ResponseWriter, status int, messages ...string) {
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, status, map[string]interface{}{"errors": messages})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
