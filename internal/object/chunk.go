package object

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ChunkReader yields the object's content in chunk-size pieces. Each
// reader opens the file from the start, so iteration is restartable: a
// new reader always observes the full content again.
type ChunkReader struct {
	file *os.File
	buf  []byte
}

// NewChunkReader opens the source file for a fresh chunk iteration.
func (o *Object) NewChunkReader() (*ChunkReader, error) {
	f, err := os.Open(filepath.Clean(o.Filename()))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Filename(), err)
	}

	return &ChunkReader{
		file: f,
		buf:  make([]byte, o.chunkSize),
	}, nil
}

// Next returns the next chunk. Every chunk is exactly chunk-size bytes
// except the last, which may be shorter. The returned slice is only valid
// until the next call. io.EOF signals the end of the content; a non-nil
// chunk may accompany it.
func (r *ChunkReader) Next() ([]byte, error) {
	n, err := io.ReadFull(r.file, r.buf)
	if n > 0 {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}

		return r.buf[:n], err
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return nil, err
}

// Close releases the underlying file.
func (r *ChunkReader) Close() error {
	return r.file.Close()
}

// Reader adapts the chunk iteration to io.ReadCloser for streaming
// uploads. onChunk, when non-nil, fires once per chunk fetched from disk.
func (o *Object) Reader(onChunk func()) (io.ReadCloser, error) {
	cr, err := o.NewChunkReader()
	if err != nil {
		return nil, err
	}

	return &chunkStream{reader: cr, onChunk: onChunk}, nil
}

type chunkStream struct {
	reader  *ChunkReader
	onChunk func()
	pending []byte
	done    bool
}

func (s *chunkStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		if s.done {
			return 0, io.EOF
		}

		chunk, err := s.reader.Next()
		if err != nil {
			if err != io.EOF {
				return 0, err
			}

			s.done = true
		}

		if len(chunk) == 0 {
			return 0, io.EOF
		}

		// The chunk buffer is reused by Next, so keep our own copy.
		s.pending = append([]byte(nil), chunk...)

		if s.onChunk != nil {
			s.onChunk()
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

func (s *chunkStream) Close() error {
	return s.reader.Close()
}
