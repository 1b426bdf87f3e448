package storage

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"
)

// ResourceMeta describes a stored resource.
type ResourceMeta struct {
	// ContentType is the MIME type of the content. May be empty.
	ContentType string

	// ContentLength is the size of the content in bytes.
	ContentLength int64

	// CreationTime is when the resource was first created. Zero if unknown.
	CreationTime time.Time

	// ModificationTime is when the resource was last written. Zero if unknown.
	ModificationTime time.Time

	// Meta holds every metadata entry of the resource, including the
	// presentation hints (MetaContentMask, MetaKeyType, MetaDataType).
	Meta map[string]string
}

// Masked reports whether the content should be hidden from display.
func (m *ResourceMeta) Masked() bool {
	return m != nil && m.Meta[MetaContentMask] == "content"
}

// Resource is a directory or a leaf resource at a Path.
type Resource struct {
	Path      Path
	Directory bool

	// Meta is nil for directories.
	Meta *ResourceMeta

	content []byte
}

// NewDirectory returns a directory resource at path.
func NewDirectory(path Path) *Resource {
	return &Resource{Path: path, Directory: true}
}

// NewResource returns a leaf resource at path with the given content.
func NewResource(path Path, meta *ResourceMeta, content []byte) *Resource {
	return &Resource{Path: path, Meta: meta, content: content}
}

// Content returns the resource payload. Directories have none.
func (r *Resource) Content() []byte {
	return r.content
}

// Reader returns a reader over the resource payload.
func (r *Resource) Reader() io.Reader {
	return bytes.NewReader(r.content)
}

// Content is the input to CreateResource and UpdateResource.
type Content struct {
	// Meta is stored verbatim next to the payload in managed mode.
	Meta map[string]string

	// Body produces the payload.
	Body io.Reader
}

// NewContent builds Content for data with the standard metadata keys set:
// content type, length, and both timestamps at now.
func NewContent(data []byte, contentType string, now time.Time) Content {
	stamp := FormatTime(now)
	meta := map[string]string{
		MetaContentLength:    strconv.Itoa(len(data)),
		MetaCreationTime:     stamp,
		MetaModificationTime: stamp,
	}
	if contentType != "" {
		meta[MetaContentType] = contentType
	}
	return Content{Meta: meta, Body: bytes.NewReader(data)}
}

// Storage is the hierarchical storage contract.
type Storage interface {
	// HasPath reports whether path is a directory or a resource.
	HasPath(ctx context.Context, path Path) bool

	// HasResource reports whether a leaf resource exists at path.
	HasResource(ctx context.Context, path Path) bool

	// HasDirectory reports whether path has children.
	HasDirectory(ctx context.Context, path Path) bool

	// GetPath returns the directory or resource at path.
	GetPath(ctx context.Context, path Path) (*Resource, error)

	// GetResource returns the leaf resource at path.
	GetResource(ctx context.Context, path Path) (*Resource, error)

	// ListDirectory returns every child of path.
	ListDirectory(ctx context.Context, path Path) ([]*Resource, error)

	// ListDirectoryResources returns the leaf children of path.
	ListDirectoryResources(ctx context.Context, path Path) ([]*Resource, error)

	// ListDirectorySubdirs returns the directory children of path.
	ListDirectorySubdirs(ctx context.Context, path Path) ([]*Resource, error)

	// CreateResource stores content at path and returns the stored resource.
	CreateResource(ctx context.Context, path Path, content Content) (*Resource, error)

	// UpdateResource replaces the resource at path and returns it.
	UpdateResource(ctx context.Context, path Path, content Content) (*Resource, error)

	// DeleteResource removes the resource at path.
	DeleteResource(ctx context.Context, path Path) error
}
