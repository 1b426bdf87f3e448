package vault

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"
	"golang.org/x/crypto/pkcs12"

	dserrors "github.com/systmms/vaultstore/internal/errors"
)

// configureTLS applies verification, CA and client certificate settings to
// the API config. A PKCS#12 keystore takes the place of the PEM pair.
func configureTLS(cfg *api.Config, opts TLSOptions) error {
	tlsCfg := &api.TLSConfig{
		CACert:     opts.CACert,
		CAPath:     opts.CAPath,
		ClientCert: opts.ClientCert,
		ClientKey:  opts.ClientKey,
		Insecure:   !opts.Verify,
	}

	if err := cfg.ConfigureTLS(tlsCfg); err != nil {
		return dserrors.ConfigError{
			Field:      "tls",
			Message:    fmt.Sprintf("failed to configure TLS: %v", err),
			Suggestion: "Check that the CA and client certificate files exist and are PEM encoded",
		}
	}

	if opts.Keystore == "" {
		return nil
	}

	cert, err := loadKeystore(opts)
	if err != nil {
		return err
	}

	transport, ok := cfg.HttpClient.Transport.(*http.Transport)
	if !ok {
		return fmt.Errorf("unexpected transport type %T", cfg.HttpClient.Transport)
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	transport.TLSClientConfig.Certificates = []tls.Certificate{cert}
	return nil
}

// loadKeystore decodes a PKCS#12 bundle holding one key and its certificate
func loadKeystore(opts TLSOptions) (tls.Certificate, error) {
	data, err := os.ReadFile(opts.Keystore)
	if err != nil {
		return tls.Certificate{}, dserrors.ConfigError{
			Field:      "tls.keystore",
			Value:      opts.Keystore,
			Message:    fmt.Sprintf("failed to read keystore: %v", err),
			Suggestion: "Check the keystore path and file permissions",
		}
	}

	password, err := opts.KeystorePassword.Reveal()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to open keystore password: %w", err)
	}

	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, dserrors.ConfigError{
			Field:      "tls.keystore",
			Value:      opts.Keystore,
			Message:    fmt.Sprintf("failed to decode keystore: %v", err),
			Suggestion: "Check 'tls.keystore_password'; the keystore must hold exactly one key and certificate",
		}
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}
