package keystore

import (
	"strings"

	"github.com/systmms/vaultstore/pkg/storage"
)

// Translator maps storage paths to backend addresses and back
type Translator struct {
	Mount  string
	Prefix string
}

// NewTranslator creates a translator, trimming surrounding slashes
func NewTranslator(mount, prefix string) Translator {
	return Translator{
		Mount:  strings.Trim(mount, "/"),
		Prefix: strings.Trim(prefix, "/"),
	}
}

// Address returns mount/prefix/path, or mount/path without a prefix.
// The root path yields the base with a trailing slash.
func (t Translator) Address(path storage.Path) string {
	return t.base() + path.String()
}

// FieldName recovers the leaf name of childAddress below parentAddress
func (t Translator) FieldName(parentAddress, childAddress string) string {
	parent := strings.TrimSuffix(parentAddress, "/") + "/"
	return strings.TrimPrefix(childAddress, parent)
}

// Path maps an address back to a storage path. It reports false when the
// address lies outside mount/prefix.
func (t Translator) Path(address string) (storage.Path, bool) {
	base := t.base()
	if strings.TrimSuffix(address, "/") == strings.TrimSuffix(base, "/") {
		return storage.Path{}, true
	}
	rest, ok := strings.CutPrefix(address, base)
	if !ok {
		return storage.Path{}, false
	}
	return storage.PathOf(rest), true
}

func (t Translator) base() string {
	if t.Prefix != "" {
		return t.Mount + "/" + t.Prefix + "/"
	}
	return t.Mount + "/"
}
