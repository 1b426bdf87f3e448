package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/vault/api"
)

const (
	// VaultImage is the image started when no external server is given
	VaultImage = "hashicorp/vault:1.15"

	// DevRootToken is the root token of the dev server
	DevRootToken = "root"

	// KV1Mount is the KV version 1 mount enabled next to the default secret/
	KV1Mount = "kv1"
)

// VaultDevServer is a Vault server in dev mode: secret/ is KV version 2 and
// KV1Mount is KV version 1.
type VaultDevServer struct {
	Address   string
	RootToken string

	client *api.Client
}

// StartVaultDev returns a running dev server. VAULTSTORE_TEST_VAULT_ADDR and
// VAULTSTORE_TEST_VAULT_TOKEN select an existing server; otherwise a
// container is started and removed when the test ends. The test is skipped
// when neither is possible.
func StartVaultDev(t *testing.T) *VaultDevServer {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Vault integration test in short mode")
	}

	ClearVaultEnv(t)

	address := os.Getenv("VAULTSTORE_TEST_VAULT_ADDR")
	token := os.Getenv("VAULTSTORE_TEST_VAULT_TOKEN")
	if address == "" {
		SkipIfDockerUnavailable(t)
		address = startContainer(t)
		token = DevRootToken
	}
	if token == "" {
		token = DevRootToken
	}

	cfg := api.DefaultConfig()
	cfg.Address = address
	client, err := api.NewClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create Vault client: %v", err)
	}
	client.SetToken(token)

	srv := &VaultDevServer{Address: address, RootToken: token, client: client}
	if err := srv.waitForHealthy(60 * time.Second); err != nil {
		t.Fatalf("Vault failed to become healthy: %v", err)
	}
	srv.ensureKV1(t)
	return srv
}

// SkipIfDockerUnavailable skips the test if Docker is not available
func SkipIfDockerUnavailable(t *testing.T) {
	t.Helper()

	if !IsDockerAvailable() {
		t.Skip("Docker not available, skipping integration test")
	}
}

// IsDockerAvailable checks if Docker is available and running
func IsDockerAvailable() bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	return exec.Command("docker", "ps").Run() == nil
}

func startContainer(t *testing.T) string {
	t.Helper()

	out, err := exec.Command("docker", "run", "-d", "--rm",
		"--cap-add=IPC_LOCK",
		"-e", "VAULT_DEV_ROOT_TOKEN_ID="+DevRootToken,
		"-p", "127.0.0.1::8200",
		VaultImage).Output()
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}
	id := strings.TrimSpace(string(out))

	t.Cleanup(func() {
		if err := exec.Command("docker", "rm", "-f", id).Run(); err != nil {
			t.Logf("Failed to remove Vault container %s: %v", id, err)
		}
	})

	out, err = exec.Command("docker", "port", id, "8200/tcp").Output()
	if err != nil {
		t.Fatalf("Failed to discover Vault port: %v", err)
	}
	hostPort := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	return "http://" + hostPort
}

func (s *VaultDevServer) waitForHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		health, err := s.client.Sys().HealthWithContext(ctx)
		cancel()
		if err == nil && health.Initialized && !health.Sealed {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not healthy after %s: %v", timeout, err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func (s *VaultDevServer) ensureKV1(t *testing.T) {
	t.Helper()

	mounts, err := s.client.Sys().ListMounts()
	if err != nil {
		t.Fatalf("Failed to list mounts: %v", err)
	}
	if _, ok := mounts[KV1Mount+"/"]; ok {
		return
	}

	err = s.client.Sys().Mount(KV1Mount, &api.MountInput{
		Type:    "kv",
		Options: map[string]string{"version": "1"},
	})
	if err != nil {
		t.Fatalf("Failed to mount %s: %v", KV1Mount, err)
	}
}

// Client returns a root client for seeding data
func (s *VaultDevServer) Client() *api.Client {
	return s.client
}

// EnableAppRole enables approle auth with a role allowed to use both KV
// mounts, issuing tokens with the given TTL. It returns the role and
// secret IDs.
func (s *VaultDevServer) EnableAppRole(t *testing.T, role string, tokenTTL time.Duration) (string, string) {
	t.Helper()

	auths, err := s.client.Sys().ListAuth()
	if err != nil {
		t.Fatalf("Failed to list auth methods: %v", err)
	}
	if _, ok := auths["approle/"]; !ok {
		if err := s.client.Sys().EnableAuthWithOptions("approle", &api.EnableAuthOptions{Type: "approle"}); err != nil {
			t.Fatalf("Failed to enable approle: %v", err)
		}
	}

	policy := fmt.Sprintf(`
path "secret/*" { capabilities = ["create", "read", "update", "delete", "list"] }
path "%s/*" { capabilities = ["create", "read", "update", "delete", "list"] }
`, KV1Mount)
	if err := s.client.Sys().PutPolicy("vaultstore-test", policy); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	logical := s.client.Logical()
	if _, err := logical.Write("auth/approle/role/"+role, map[string]interface{}{
		"token_policies": "vaultstore-test",
		"token_ttl":      tokenTTL.String(),
		"token_max_ttl":  (10 * tokenTTL).String(),
	}); err != nil {
		t.Fatalf("Failed to create role %s: %v", role, err)
	}

	roleSecret, err := logical.Read("auth/approle/role/" + role + "/role-id")
	if err != nil || roleSecret == nil {
		t.Fatalf("Failed to read role id: %v", err)
	}
	idSecret, err := logical.Write("auth/approle/role/"+role+"/secret-id", nil)
	if err != nil || idSecret == nil {
		t.Fatalf("Failed to create secret id: %v", err)
	}

	return roleSecret.Data["role_id"].(string), idSecret.Data["secret_id"].(string)
}
