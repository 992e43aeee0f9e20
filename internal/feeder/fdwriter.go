package feeder

import (
	"context"
	"io"

	"entropyd/internal/poolbuf"
)

// FDWriter writes a finite or unbounded stream of pool bytes to a file
// descriptor. Limit <= 0 means write forever (until ctx is cancelled or a
// write error occurs).
type FDWriter struct {
	pool  *poolbuf.Pool
	w     io.Writer
	limit int64

	chunkSize int
}

// NewFDWriter constructs an FDWriter that reads ChunkSize-byte chunks from
// pool (a reasonable default is used if chunkSize <= 0) and writes them to
// w. limit <= 0 means unbounded.
func NewFDWriter(pool *poolbuf.Pool, w io.Writer, limit int64, chunkSize int) *FDWriter {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &FDWriter{pool: pool, w: w, limit: limit, chunkSize: chunkSize}
}

// Run drives the FD writer loop, blocking on Pool.Read or the underlying
// Write at each suspension point, until the limit is reached, ctx is
// cancelled, or a write error occurs.
func (f *FDWriter) Run(ctx context.Context) error {
	var written int64
	buf := make([]byte, f.chunkSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		want := f.chunkSize
		if f.limit > 0 {
			remaining := f.limit - written
			if remaining <= 0 {
				return nil
			}
			if int64(want) > remaining {
				want = int(remaining)
			}
		}

		n, err := f.pool.Read(ctx, buf[:want], want)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		if _, err := f.w.Write(buf[:n]); err != nil {
			return err
		}
		written += int64(n)
	}
}
