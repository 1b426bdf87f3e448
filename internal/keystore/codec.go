package keystore

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/systmms/vaultstore/pkg/storage"
)

// privateKeyMarker appears in PEM private keys of every algorithm
const privateKeyMarker = "PRIVATE KEY-----"

// errNotLeaf is returned when decoding an object that has no content
var errNotLeaf = errors.New("object has no content")

// readContent drains the content body and checks it is valid UTF-8, since
// secrets hold text fields
func readContent(event storage.Event, path storage.Path, content storage.Content) (string, error) {
	if content.Body == nil {
		return "", nil
	}
	data, err := io.ReadAll(content.Body)
	if err != nil {
		return "", storage.NewError(event, path, fmt.Errorf("%w: %w", storage.ErrEncoding, err), "failed to read content")
	}
	if !utf8.Valid(data) {
		return "", storage.NewError(event, path, storage.ErrEncoding, "content is not valid UTF-8 text")
	}
	return string(data), nil
}

// encodeManaged merges the caller metadata with the payload. When existing is
// a managed resource its creation time is carried forward.
func encodeManaged(data string, meta map[string]string, existing *Object) map[string]string {
	fields := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		fields[k] = v
	}
	fields[PayloadField] = data

	if existing != nil && existing.Kind == KindManaged {
		if created, ok := storage.ParseTime(existing.Fields[storage.MetaCreationTime]); ok {
			fields[storage.MetaCreationTime] = storage.FormatTime(created)
		}
	}
	return fields
}

// encodeRawCreate stores the payload under RawValueField
func encodeRawCreate(data string) map[string]string {
	return map[string]string{RawValueField: data}
}

// encodeRawUpdate returns the address to write and the full field set for an
// update of obj. A field view rewrites its parent with only the target field
// changed. A single-field raw secret has every field overwritten.
func encodeRawUpdate(obj *Object, data string) (string, map[string]string, error) {
	switch obj.Kind {
	case KindField:
		fields := make(map[string]string, len(obj.Parent.Fields)+1)
		for k, v := range obj.Parent.Fields {
			fields[k] = v
		}
		fields[obj.FieldName] = data
		return obj.Parent.Address, fields, nil
	case KindRaw:
		if obj.MultiField {
			return "", nil, storage.ErrIsDirectory
		}
		if len(obj.Fields) == 0 {
			return obj.Address, encodeRawCreate(data), nil
		}
		fields := make(map[string]string, len(obj.Fields))
		for k := range obj.Fields {
			fields[k] = data
		}
		return obj.Address, fields, nil
	default:
		return "", nil, fmt.Errorf("%w: cannot raw-encode a %s object", storage.ErrEncoding, obj.Kind)
	}
}

// decode turns a leaf object into a resource
func decode(obj *Object) (*storage.Resource, error) {
	switch obj.Kind {
	case KindManaged:
		return decodeManaged(obj.Path, obj.Fields), nil
	case KindRaw, KindField:
		value, ok := obj.Value()
		if !ok {
			return nil, errNotLeaf
		}
		return decodeRaw(obj.Path, value), nil
	default:
		return nil, errNotLeaf
	}
}

// decodeManaged reads the stored metadata back. Missing or malformed
// timestamps are left zero; a missing length falls back to the payload size.
func decodeManaged(path storage.Path, fields map[string]string) *storage.Resource {
	data := fields[PayloadField]

	meta := &storage.ResourceMeta{
		ContentType:   fields[storage.MetaContentType],
		ContentLength: int64(len(data)),
		Meta:          make(map[string]string, len(fields)),
	}
	for k, v := range fields {
		if k != PayloadField {
			meta.Meta[k] = v
		}
	}

	if n, err := strconv.ParseInt(fields[storage.MetaContentLength], 10, 64); err == nil {
		meta.ContentLength = n
	}
	meta.CreationTime, _ = storage.ParseTime(fields[storage.MetaCreationTime])
	meta.ModificationTime, _ = storage.ParseTime(fields[storage.MetaModificationTime])

	for k, v := range storage.HintsFor(meta.ContentType) {
		meta.Meta[k] = v
	}

	return storage.NewResource(path, meta, []byte(data))
}

// decodeRaw infers metadata from the value: PEM keys and multi-line values
// are private keys, anything else is a password
func decodeRaw(path storage.Path, value string) *storage.Resource {
	contentType := storage.PasswordMIMEType
	if strings.Contains(value, privateKeyMarker) || strings.ContainsAny(value, "\r\n") {
		contentType = storage.PrivateKeyMIMEType
	}

	meta := &storage.ResourceMeta{
		ContentType:   contentType,
		ContentLength: int64(len(value)),
		Meta:          map[string]string(storage.HintsFor(contentType)),
	}
	meta.Meta[storage.MetaContentType] = contentType
	meta.Meta[storage.MetaContentLength] = strconv.Itoa(len(value))

	return storage.NewResource(path, meta, []byte(value))
}
