package storage

import "strings"

// Path is a normalized, slash-delimited storage path. The zero value is the root.
type Path struct {
	raw string
}

// PathOf builds a Path from its string form, dropping leading, trailing and
// repeated slashes.
func PathOf(s string) Path {
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return Path{raw: strings.Join(segments, "/")}
}

// String returns the path without leading or trailing slashes.
func (p Path) String() string {
	return p.raw
}

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool {
	return p.raw == ""
}

// Name returns the last segment of the path, or "" for the root.
func (p Path) Name() string {
	if i := strings.LastIndex(p.raw, "/"); i >= 0 {
		return p.raw[i+1:]
	}
	return p.raw
}

// Parent returns the path with its last segment removed. The parent of the
// root is the root.
func (p Path) Parent() Path {
	if i := strings.LastIndex(p.raw, "/"); i >= 0 {
		return Path{raw: p.raw[:i]}
	}
	return Path{}
}

// Append returns p extended by segment. A trailing "/" on segment, as used by
// backends to flag directories, is dropped.
func (p Path) Append(segment string) Path {
	if p.raw == "" {
		return PathOf(segment)
	}
	return PathOf(p.raw + "/" + segment)
}

// RelativeTo returns the remainder of p after removing parent as a prefix.
// It returns p unchanged when parent is not a prefix of p.
func (p Path) RelativeTo(parent Path) string {
	if parent.raw == "" {
		return p.raw
	}
	if rest, ok := strings.CutPrefix(p.raw, parent.raw+"/"); ok {
		return rest
	}
	return p.raw
}
