// Package progress defines the reporting hooks invoked synchronously at
// well-defined points of the load, upload and push sequences. Callers that
// do not care embed Nop and override nothing.
package progress

// Reporter receives lifecycle notifications while objects are read and
// transferred. Implementations must be cheap; hooks run inline with I/O.
type Reporter interface {
	// ObjectReadStarted fires before an object's content is streamed,
	// with the total number of chunks about to be read.
	ObjectReadStarted(filename string, chunks int64)
	// ObjectRead fires after each chunk has been read.
	ObjectRead(filename string)
	// ObjectReadFinished fires once the whole object has been read.
	ObjectReadFinished(filename string)

	// ObjectUploadStarted fires before an object's bytes are sent.
	ObjectUploadStarted(filename string)
	// ObjectUploadFinished fires after the upload attempt, with the
	// negotiation outcome ("exists", "success" or "fail").
	ObjectUploadFinished(filename, result string)

	// PushStarted fires once the server has accepted the package metadata.
	PushStarted(uid string)
	// PushFinished fires after the push has been finalized.
	PushFinished(uid string)
}

// Nop is a Reporter that ignores every notification.
type Nop struct{}

// ObjectReadStarted implements Reporter.
func (Nop) ObjectReadStarted(string, int64) {}

// ObjectRead implements Reporter.
func (Nop) ObjectRead(string) {}

// ObjectReadFinished implements Reporter.
func (Nop) ObjectReadFinished(string) {}

// ObjectUploadStarted implements Reporter.
func (Nop) ObjectUploadStarted(string) {}

// ObjectUploadFinished implements Reporter.
func (Nop) ObjectUploadFinished(string, string) {}

// PushStarted implements Reporter.
func (Nop) PushStarted(string) {}

// PushFinished implements Reporter.
func (Nop) PushFinished(string) {}
