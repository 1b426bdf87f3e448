// Package storage defines the hierarchical key storage contract that vaultstore
// exposes to its host.
//
// The host sees a tree of directories and resources addressed by slash-delimited
// paths. Every resource carries content plus typed metadata (content type, size,
// creation and modification time, and presentation hints such as content masking).
// Implementations decide how that tree is persisted; the one shipped in this
// repository maps it onto a flat secrets backend.
//
// # Paths
//
// A Path is a normalized, slash-delimited sequence of segments:
//
//	p := storage.PathOf("/keys/db/password/")
//	p.String()                  // "keys/db/password"
//	p.Parent().String()         // "keys/db"
//	p.Name()                    // "password"
//	p.RelativeTo(p.Parent())    // "password"
//
// A trailing "/" only has meaning in backend listings, where it marks a child as a
// directory. Append drops it:
//
//	storage.PathOf("keys").Append("db/").String() // "keys/db"
//
// # Resources and Content
//
// Resource is the value returned by lookups and listings. Directories have
// Directory set and no Meta or content. Content is the input side: a metadata map
// plus a reader producing the payload. NewContent builds one with the standard
// metadata keys filled in:
//
//	content := storage.NewContent([]byte("s3cr3t"), storage.PasswordMIMEType, time.Now())
//	res, err := store.CreateResource(ctx, storage.PathOf("keys/db/password"), content)
//
// # Error Handling
//
// Existence checks (HasPath, HasResource, HasDirectory) never fail; any backend
// problem reads as false. Every other operation returns *Error, which records the
// event (create, read, update, delete, list) and the path, and wraps one of the
// sentinel errors so callers can branch with errors.Is:
//
//	_, err := store.GetResource(ctx, p)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // nothing stored at p
//	}
//
// # Threading and Concurrency
//
// Storage implementations must be safe for concurrent use by multiple goroutines.
package storage
