// Package client implements the signed HTTP protocol spoken with the
// update-management service: package metadata upload, content-addressed
// object upload negotiation, push finalization, and metadata/object
// download. Every API request carries an EFOTA-V1 authorization header;
// only the raw transfer to the storage backend's one-time URL is sent
// unsigned.
package client
