package storage

import "time"

// Metadata keys persisted alongside managed resources.
const (
	MetaContentType      = "content-type"
	MetaContentLength    = "content-size"
	MetaCreationTime     = "content-creation-time"
	MetaModificationTime = "content-modify-time"
)

// Presentation hints attached on load. They are derived from the content type,
// or from the value itself for raw secrets, and are never required on input.
const (
	MetaContentMask = "content-mask"
	MetaKeyType     = "key-type"
	MetaDataType    = "data-type"
)

// Well-known content types that drive the presentation hints.
const (
	PrivateKeyMIMEType = "application/octet-stream"
	PublicKeyMIMEType  = "application/pgp-keys"
	PasswordMIMEType   = "application/x-storage-data-password"
)

// TimeFormat is the textual layout of the stored creation and modification
// times. Timestamps are kept in UTC with second precision.
const TimeFormat = "2006-01-02T15:04:05Z"

// Hints is the set of presentation hints attached to a content type.
type Hints map[string]string

var mimeHints = map[string]Hints{
	PrivateKeyMIMEType: {MetaContentMask: "content", MetaKeyType: "private"},
	PublicKeyMIMEType:  {MetaKeyType: "public"},
	PasswordMIMEType:   {MetaContentMask: "content", MetaDataType: "password"},
}

// HintsFor returns a copy of the hints for contentType, or nil when the type
// carries none.
func HintsFor(contentType string) Hints {
	hints, ok := mimeHints[contentType]
	if !ok {
		return nil
	}
	out := make(Hints, len(hints))
	for k, v := range hints {
		out[k] = v
	}
	return out
}

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a TimeFormat timestamp. Empty or malformed input yields the
// zero time and false.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
