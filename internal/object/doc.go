// Package object models one unit of update content: a source file bound to
// an installation target through a mode-specific option set.
//
// An object computes its content identity (chunked SHA-256 and MD5 digests)
// lazily via Load, sniffs compression metadata from the payload header, and
// resolves install conditions from binary image headers. It serializes to
// two distinct forms: the editable template (no computed fields) and the
// server-bound metadata (every computed field included).
package object
