package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemeID identifies version 1 of the request signing scheme.
const SchemeID = "EFOTA-V1"

// timestampLayout is the strict UTC form used in the signed message.
const timestampLayout = "20060102T150405Z"

// dateLayout is the date-only portion used for signing key derivation.
const dateLayout = "20060102"

// Sign derives the authorization header value for a request. The
// transform is deterministic and stateless: given the same canonical
// request, header set, timestamp and credentials it is bit-exact
// reproducible — this is the authentication contract with the server.
//
// The signed message is three lines: the scheme id, the timestamp, and
// the hex SHA-256 of the canonical request. The signing key is a single
// HMAC-SHA256 step keyed by "EFOTA-V1-" + secret over the date-only
// portion of the timestamp; the final signature is HMAC-SHA256 of the
// message keyed by the hex form of the signing key.
func Sign(canonicalRequest string, headerNames []string, timestamp time.Time, accessID, secret string) string {
	hashed := sha256.Sum256([]byte(canonicalRequest))

	message := strings.Join([]string{
		SchemeID,
		timestamp.UTC().Format(timestampLayout),
		hex.EncodeToString(hashed[:]),
	}, "\n")

	key := hmacSHA256Hex(
		[]byte(SchemeID+"-"+secret),
		timestamp.UTC().Format(dateLayout),
	)

	signature := hmacSHA256Hex([]byte(key), message)

	return fmt.Sprintf("%s Credential=%s, SignedHeaders=%s, Signature=%s",
		SchemeID, accessID, signedHeaders(headerNames), signature)
}

// signedHeaders renders the sorted, ';'-joined lowercase header list.
func signedHeaders(names []string) string {
	lowered := make([]string, 0, len(names))
	for _, name := range names {
		lowered = append(lowered, strings.ToLower(name))
	}

	sort.Strings(lowered)

	return strings.Join(lowered, ";")
}

func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	// hash.Hash never returns a write error.
	_, _ = mac.Write([]byte(message))

	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalize builds the deterministic representation of an outgoing
// request: method, path, the sorted signed-header lines and the hex
// SHA-256 of the body, each on its own line.
func canonicalize(method, path string, headers map[string]string, body []byte) string {
	lines := make([]string, 0, len(headers))
	for name, value := range headers {
		lines = append(lines, strings.ToLower(name)+":"+value)
	}

	sort.Strings(lines)

	bodyHash := sha256.Sum256(body)

	return strings.Join([]string{
		method,
		path,
		strings.Join(lines, "\n"),
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
}
