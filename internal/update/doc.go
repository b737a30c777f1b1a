// Package update aggregates everything a deployable firmware-update
// package carries: the installation set manager, the supported-hardware
// list and the product/version identity.
//
// A package serializes to two intentionally distinct forms. The template
// is the editable, locally persisted representation: no computed fields,
// no server identity. The metadata is the server-bound representation
// with every computed field resolved. The package also drives the push
// and pull flows against the remote service.
package update
