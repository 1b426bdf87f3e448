package keystore

import (
	"context"
	"errors"

	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/pkg/storage"
)

var errRootPath = errors.New("the root path holds no secret")

// Resolver works out what a path refers to with at most two reads: the path
// itself, then its parent. Deeper nesting is not looked at.
type Resolver struct {
	client     vault.Client
	translator Translator
	logger     *logging.Logger
}

// NewResolver creates a resolver
func NewResolver(client vault.Client, translator Translator, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{client: client, translator: translator, logger: logger}
}

// Resolve reads path and classifies it. Failures never escape: a path that
// cannot be read directly or through its parent resolves to KindMissing
// carrying the direct read's error.
func (r *Resolver) Resolve(ctx context.Context, path storage.Path) *Object {
	address := r.translator.Address(path)

	fields, err := r.client.Read(ctx, address)
	if err == nil {
		obj := classify(path, address, fields)
		r.logger.Debug("Resolved %s to %s secret with %d fields", path, obj.Kind, len(fields))
		return obj
	}

	if path.IsRoot() {
		return missingObject(path, errRootPath)
	}

	parentPath := path.Parent()
	parentAddress := r.translator.Address(parentPath)

	parentFields, perr := r.client.Read(ctx, parentAddress)
	if perr != nil {
		r.logger.Debug("Resolved %s to missing: %v", path, err)
		return missingObject(path, err)
	}

	parent := classify(parentPath, parentAddress, parentFields)
	if parent.Kind != KindRaw {
		r.logger.Debug("Resolved %s to missing: parent is a managed resource", path)
		return missingObject(path, err)
	}

	name := r.translator.FieldName(parentAddress, address)
	obj := fieldObject(path, parent, name)
	r.logger.Debug("Resolved %s to field %q of %s (present: %t)", path, name, parentPath, obj.Exists())
	return obj
}
