// Package option defines the typed catalog of object options and the
// per-mode registry used to validate them.
//
// Each installation mode (raw, copy, tarball, ...) declares which options it
// accepts, which are required and which are volatile (computed at load time
// and excluded from the editable template form). Optional capabilities
// (compression, install condition) extend a mode's option set when the mode
// descriptor is built, before it is frozen inside a Registry.
package option
