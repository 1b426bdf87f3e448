package keystore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/pkg/storage"
)

// Filter selects which children a listing returns
type Filter int

const (
	FilterAll Filter = iota
	FilterResources
	FilterDirectories
)

func (f Filter) accepts(r *storage.Resource) bool {
	switch f {
	case FilterResources:
		return !r.Directory
	case FilterDirectories:
		return r.Directory
	default:
		return true
	}
}

// Enumerator lists the children of a path, turning multi-field raw secrets
// into directories of their fields
type Enumerator struct {
	client     vault.Client
	translator Translator
	resolver   *Resolver
	mode       Mode
	logger     *logging.Logger
}

// NewEnumerator creates an enumerator
func NewEnumerator(client vault.Client, translator Translator, resolver *Resolver, mode Mode, logger *logging.Logger) *Enumerator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Enumerator{
		client:     client,
		translator: translator,
		resolver:   resolver,
		mode:       mode,
		logger:     logger,
	}
}

// List returns the children of path accepted by filter, sorted by path with
// directories first on ties
func (e *Enumerator) List(ctx context.Context, path storage.Path, filter Filter) ([]*storage.Resource, error) {
	keys, err := e.client.List(ctx, e.translator.Address(path))
	if err != nil {
		return nil, storage.NewError(storage.EventList, path, fmt.Errorf("%w: %w", storage.ErrTransport, err), "failed to list children")
	}

	var children []*storage.Resource
	if len(keys) == 0 {
		if e.mode == ModeRaw {
			children = e.fieldChildren(ctx, path)
		}
	} else {
		children = e.backendChildren(ctx, path, keys)
	}

	return sortUnique(children, filter), nil
}

// fieldChildren synthesizes one leaf per field of a multi-field raw secret
// at path, from the single read done by the resolver. Fields whose names are
// empty or contain "/" cannot be addressed as path/name and are left out.
func (e *Enumerator) fieldChildren(ctx context.Context, path storage.Path) []*storage.Resource {
	obj := e.resolver.Resolve(ctx, path)
	if !obj.IsDirectory() {
		return nil
	}

	children := make([]*storage.Resource, 0, len(obj.Fields))
	for _, name := range obj.FieldNames() {
		childPath := path.Append(name)
		if childPath.Parent() != path || childPath.Name() != name {
			e.logger.Debug("Skipping field %q of %s: not usable as a path segment", name, path)
			continue
		}
		child := fieldObject(childPath, obj, name)
		res, err := decode(child)
		if err != nil {
			continue
		}
		children = append(children, res)
	}
	return children
}

func (e *Enumerator) backendChildren(ctx context.Context, path storage.Path, keys []string) []*storage.Resource {
	children := make([]*storage.Resource, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			children = append(children, storage.NewDirectory(path.Append(key)))
			continue
		}

		childPath := path.Append(key)
		obj := e.resolver.Resolve(ctx, childPath)

		switch {
		case obj.Kind == KindManaged:
			// leaf in both modes
		case e.mode == ModeRaw && obj.IsDirectory():
			children = append(children, storage.NewDirectory(childPath))
			continue
		case e.mode == ModeRaw && obj.IsLeaf():
			// single-field raw secret
		default:
			e.logger.Debug("Skipping %s while listing %s: %s object", childPath, path, obj.Kind)
			continue
		}

		res, err := decode(obj)
		if err != nil {
			e.logger.Debug("Skipping %s while listing %s: %v", childPath, path, err)
			continue
		}
		children = append(children, res)
	}
	return children
}

func sortUnique(children []*storage.Resource, filter Filter) []*storage.Resource {
	type key struct {
		path string
		dir  bool
	}

	seen := make(map[key]bool, len(children))
	out := make([]*storage.Resource, 0, len(children))
	for _, c := range children {
		k := key{c.Path.String(), c.Directory}
		if seen[k] || !filter.accepts(c) {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Path.String(), out[j].Path.String()
		if pi != pj {
			return pi < pj
		}
		return out[i].Directory && !out[j].Directory
	})
	return out
}
