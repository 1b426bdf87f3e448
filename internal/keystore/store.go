// Package keystore presents a flat Vault KV namespace as hierarchical
// storage.
//
// Every path resolves to one of four objects: a managed resource (a secret
// with a "data" payload and stored metadata), a raw secret of plain fields,
// a single field of a raw secret at the parent path, or nothing. Raw secrets
// with several fields read as directories whose children are their fields.
//
// The storage mode picks the encoding of new content. Managed mode stores
// full metadata and round-trips it exactly. Raw mode stores plain values
// that other Vault clients can read, and infers metadata on load.
package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/pkg/storage"
)

// Mode is the storage mode
type Mode string

const (
	ModeManaged Mode = "managed"
	ModeRaw     Mode = "raw"
)

// Validator keeps the backend session usable
type Validator interface {
	EnsureValid(ctx context.Context) error
}

type noopValidator struct{}

func (noopValidator) EnsureValid(context.Context) error { return nil }

// Options configures a Store
type Options struct {
	Mount  string
	Prefix string
	Mode   Mode

	// Session is checked before every operation; nil skips the check
	Session Validator
	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// Store implements storage.Storage on a Vault KV mount
type Store struct {
	client     vault.Client
	session    Validator
	translator Translator
	resolver   *Resolver
	enumerator *Enumerator
	mode       Mode
	logger     *logging.Logger
	metrics    *metrics.Recorder
}

var _ storage.Storage = (*Store)(nil)

// New creates a store
func New(client vault.Client, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeManaged
	}
	var session Validator = noopValidator{}
	if opts.Session != nil {
		session = opts.Session
	}

	translator := NewTranslator(opts.Mount, opts.Prefix)
	resolver := NewResolver(client, translator, logger)

	return &Store{
		client:     client,
		session:    session,
		translator: translator,
		resolver:   resolver,
		enumerator: NewEnumerator(client, translator, resolver, mode, logger),
		mode:       mode,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Mode returns the storage mode
func (s *Store) Mode() Mode {
	return s.mode
}

// Translator returns the path translator
func (s *Store) Translator() Translator {
	return s.translator
}

// Resolve returns the object at path
func (s *Store) Resolve(ctx context.Context, path storage.Path) *Object {
	s.ensureSession(ctx)
	return s.resolver.Resolve(ctx, path)
}

// ensureSession renews the session when needed. Renewal failures are only
// logged; the next backend call reports the real problem if there is one.
func (s *Store) ensureSession(ctx context.Context) {
	if err := s.session.EnsureValid(ctx); err != nil {
		s.logger.Warn("Session renewal failed, continuing with current token: %v", err)
	}
}

func (s *Store) observe(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, storage.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	s.metrics.StorageOperation(operation, outcome)
}

// HasPath reports whether path is a directory or a resource
func (s *Store) HasPath(ctx context.Context, path storage.Path) bool {
	s.ensureSession(ctx)
	return s.hasDirectory(ctx, path) || s.hasResource(ctx, path)
}

// HasResource reports whether path reads as a single resource
func (s *Store) HasResource(ctx context.Context, path storage.Path) bool {
	s.ensureSession(ctx)
	return s.hasResource(ctx, path)
}

// HasDirectory reports whether path has children
func (s *Store) HasDirectory(ctx context.Context, path storage.Path) bool {
	s.ensureSession(ctx)
	return s.hasDirectory(ctx, path)
}

func (s *Store) hasResource(ctx context.Context, path storage.Path) bool {
	return s.resolver.Resolve(ctx, path).IsLeaf()
}

func (s *Store) hasDirectory(ctx context.Context, path storage.Path) bool {
	keys, err := s.client.List(ctx, s.translator.Address(path))
	if err != nil {
		s.logger.Debug("Listing %s failed: %v", path, err)
		return false
	}
	if len(keys) > 0 {
		return true
	}
	if s.mode != ModeRaw {
		return false
	}
	return s.resolver.Resolve(ctx, path).IsDirectory()
}

// GetPath returns a directory resource when path has children, else the
// resource at path
func (s *Store) GetPath(ctx context.Context, path storage.Path) (res *storage.Resource, err error) {
	defer func() { s.observe("get", err) }()
	s.ensureSession(ctx)

	if s.hasDirectory(ctx, path) {
		return storage.NewDirectory(path), nil
	}
	return s.getResource(ctx, storage.EventRead, path)
}

// GetResource returns the resource at path
func (s *Store) GetResource(ctx context.Context, path storage.Path) (res *storage.Resource, err error) {
	defer func() { s.observe("get", err) }()
	s.ensureSession(ctx)

	return s.getResource(ctx, storage.EventRead, path)
}

func (s *Store) getResource(ctx context.Context, event storage.Event, path storage.Path) (*storage.Resource, error) {
	obj := s.resolver.Resolve(ctx, path)

	switch {
	case obj.Kind == KindMissing:
		return nil, missingError(event, obj)
	case obj.Kind == KindField && !obj.Exists():
		return nil, storage.NewError(event, path, storage.ErrNotFound, "no field %q in %s", obj.FieldName, obj.Parent.Path)
	case obj.IsDirectory():
		return nil, storage.NewError(event, path, storage.ErrIsDirectory, "secret has %d fields", len(obj.Fields))
	}

	res, err := decode(obj)
	if err != nil {
		return nil, storage.NewError(event, path, fmt.Errorf("%w: %w", storage.ErrEncoding, err), "failed to decode %s object", obj.Kind)
	}
	return res, nil
}

// ListDirectory returns every child of path
func (s *Store) ListDirectory(ctx context.Context, path storage.Path) ([]*storage.Resource, error) {
	return s.list(ctx, path, FilterAll)
}

// ListDirectoryResources returns the resource children of path
func (s *Store) ListDirectoryResources(ctx context.Context, path storage.Path) ([]*storage.Resource, error) {
	return s.list(ctx, path, FilterResources)
}

// ListDirectorySubdirs returns the directory children of path
func (s *Store) ListDirectorySubdirs(ctx context.Context, path storage.Path) ([]*storage.Resource, error) {
	return s.list(ctx, path, FilterDirectories)
}

func (s *Store) list(ctx context.Context, path storage.Path, filter Filter) (children []*storage.Resource, err error) {
	defer func() { s.observe("list", err) }()
	s.ensureSession(ctx)

	return s.enumerator.List(ctx, path, filter)
}

// CreateResource encodes content in the configured mode, writes it without
// reading first and returns the stored resource
func (s *Store) CreateResource(ctx context.Context, path storage.Path, content storage.Content) (res *storage.Resource, err error) {
	defer func() { s.observe("create", err) }()
	s.ensureSession(ctx)

	data, err := readContent(storage.EventCreate, path, content)
	if err != nil {
		return nil, err
	}

	var fields map[string]string
	if s.mode == ModeManaged {
		fields = encodeManaged(data, content.Meta, nil)
	} else {
		fields = encodeRawCreate(data)
	}

	if err := s.client.Write(ctx, s.translator.Address(path), fields); err != nil {
		return nil, backendError(storage.EventCreate, path, err, "failed to write secret")
	}
	s.logger.Debug("Created %s resource at %s", s.mode, path)

	return s.getResource(ctx, storage.EventCreate, path)
}

// UpdateResource replaces the content at path. The existing object is read
// first to keep the creation time of managed resources and the sibling
// fields of field views.
func (s *Store) UpdateResource(ctx context.Context, path storage.Path, content storage.Content) (res *storage.Resource, err error) {
	defer func() { s.observe("update", err) }()
	s.ensureSession(ctx)

	obj := s.resolver.Resolve(ctx, path)
	switch {
	case obj.Kind == KindMissing:
		return nil, missingError(storage.EventUpdate, obj)
	case obj.IsDirectory():
		return nil, storage.NewError(storage.EventUpdate, path, storage.ErrIsDirectory, "cannot update a secret with %d fields as one value", len(obj.Fields))
	}

	data, err := readContent(storage.EventUpdate, path, content)
	if err != nil {
		return nil, err
	}

	address := s.translator.Address(path)
	var fields map[string]string
	if s.mode == ModeManaged || obj.Kind == KindManaged {
		fields = encodeManaged(data, content.Meta, obj)
	} else {
		address, fields, err = encodeRawUpdate(obj, data)
		if err != nil {
			return nil, storage.NewError(storage.EventUpdate, path, err, "failed to encode content")
		}
	}

	if err := s.client.Write(ctx, address, fields); err != nil {
		return nil, backendError(storage.EventUpdate, path, err, "failed to write secret")
	}
	s.logger.Debug("Updated %s object at %s", obj.Kind, path)

	return s.getResource(ctx, storage.EventUpdate, path)
}

// DeleteResource removes the resource at path. Deleting a field view
// rewrites its parent without the field, and removes the parent once its
// last field is gone.
func (s *Store) DeleteResource(ctx context.Context, path storage.Path) (err error) {
	defer func() { s.observe("delete", err) }()
	s.ensureSession(ctx)

	obj := s.resolver.Resolve(ctx, path)

	switch obj.Kind {
	case KindMissing:
		return missingError(storage.EventDelete, obj)
	case KindField:
		if !obj.Exists() {
			return storage.NewError(storage.EventDelete, path, storage.ErrNotFound, "no field %q in %s", obj.FieldName, obj.Parent.Path)
		}
		return s.deleteField(ctx, obj)
	default:
		if err := s.client.Delete(ctx, obj.Address); err != nil {
			return backendError(storage.EventDelete, path, err, "failed to delete secret")
		}
		s.logger.Debug("Deleted %s secret at %s", obj.Kind, path)
		return nil
	}
}

func (s *Store) deleteField(ctx context.Context, obj *Object) error {
	remaining := make(map[string]string, len(obj.Parent.Fields))
	for k, v := range obj.Parent.Fields {
		if k != obj.FieldName {
			remaining[k] = v
		}
	}

	if len(remaining) == 0 {
		if err := s.client.Delete(ctx, obj.Parent.Address); err != nil {
			return backendError(storage.EventDelete, obj.Path, err, "failed to delete emptied secret %s", obj.Parent.Path)
		}
		s.logger.Debug("Deleted last field %q and its secret %s", obj.FieldName, obj.Parent.Path)
		return nil
	}

	if err := s.client.Write(ctx, obj.Parent.Address, remaining); err != nil {
		return backendError(storage.EventDelete, obj.Path, err, "failed to rewrite %s without field %q", obj.Parent.Path, obj.FieldName)
	}
	s.logger.Debug("Deleted field %q of %s", obj.FieldName, obj.Parent.Path)
	return nil
}

// missingError reports a missing object as not found, unless the direct read
// failed for another reason than absence
func missingError(event storage.Event, obj *Object) error {
	if obj.Err == nil || errors.Is(obj.Err, vault.ErrSecretNotFound) || errors.Is(obj.Err, errRootPath) {
		return storage.NewError(event, obj.Path, storage.ErrNotFound, "nothing stored at this path or its parent")
	}
	return storage.NewError(event, obj.Path, fmt.Errorf("%w: %w", storage.ErrTransport, obj.Err), "failed to read secret")
}

func backendError(event storage.Event, path storage.Path, err error, format string, args ...any) error {
	if errors.Is(err, vault.ErrSecretNotFound) {
		err = fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	} else {
		err = fmt.Errorf("%w: %w", storage.ErrTransport, err)
	}
	return storage.NewError(event, path, err, format, args...)
}
