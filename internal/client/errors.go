package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrServerUnreachable marks a connection-level failure, as opposed to a
// non-success HTTP response from a reachable server.
var ErrServerUnreachable = errors.New("cannot reach the server")

// UploadError reports a push-phase failure, carrying the server's own
// error detail rather than a paraphrase.
type UploadError struct {
	// Op names the failed phase (upload metadata, upload object, finish push).
	Op string
	// Status is the HTTP status the server answered with.
	Status int
	// Details holds the server-reported error list, when any.
	Details []string
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("%s: server answered %d", e.Op, e.Status)
	if len(e.Details) > 0 {
		msg += ":\n" + strings.Join(e.Details, "\n")
	}

	return msg
}

// DownloadError reports a pull-phase failure from a reachable server.
type DownloadError struct {
	// Op names the failed operation.
	Op string
	// Status is the HTTP status the server answered with.
	Status int
	// Body is the raw response body, preserved for the user.
	Body string
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("%s: server answered %d", e.Op, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}
