//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"

	"github.com/efota/efu/internal/logger"
	"github.com/efota/efu/internal/progress"
)

// LogReporter logs transfer milestones through the context logger. Chunk
// ticks are deliberately silent; per-chunk log lines would drown everything
// else at the default chunk size.
type LogReporter struct {
	progress.Nop

	ctx context.Context
}

// NewLogReporter builds a reporter bound to the given context.
func NewLogReporter(ctx context.Context) *LogReporter {
	return &LogReporter{ctx: ctx}
}

// ObjectReadStarted implements progress.Reporter.
func (r *LogReporter) ObjectReadStarted(filename string, chunks int64) {
	logger.InfoKV(r.ctx, "Reading object", "filename", filename, "chunks", chunks)
}

// ObjectReadFinished implements progress.Reporter.
func (r *LogReporter) ObjectReadFinished(filename string) {
	logger.InfoKV(r.ctx, "Object read", "filename", filename)
}

// ObjectUploadStarted implements progress.Reporter.
func (r *LogReporter) ObjectUploadStarted(filename string) {
	logger.InfoKV(r.ctx, "Uploading object", "filename", filename)
}

// ObjectUploadFinished implements progress.Reporter.
func (r *LogReporter) ObjectUploadFinished(filename, result string) {
	logger.InfoKV(r.ctx, "Object upload finished", "filename", filename, "result", result)
}

// PushStarted implements progress.Reporter.
func (r *LogReporter) PushStarted(uid string) {
	logger.InfoKV(r.ctx, "Package accepted by the server", "uid", uid)
}

// PushFinished implements progress.Reporter.
func (r *LogReporter) PushFinished(uid string) {
	logger.InfoKV(r.ctx, "Push finished", "uid", uid)
}
