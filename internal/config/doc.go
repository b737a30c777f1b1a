// Package config defines server settings used by the binary and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the update server URL, the signing credentials and
// the transfer parameters.
package config
