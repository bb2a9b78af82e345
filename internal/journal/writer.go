package journal

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
	ErrLineTooLarge   = errors.New("journal line too large")
)

const maxLineLen = 1 << 24

// Writer appends serialized events to a single append-only file from a
// buffered queue. The file is never truncated or rewritten in place. The
// first I/O error latches and every later append reports it; the caller is
// expected to treat that as fatal to the producing process.
type Writer struct {
	cfg Config
	ch  chan []byte
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates a journal writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan []byte, cfg.QueueSize),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	file, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx, file)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppend enqueues one serialized event line without blocking. The line
// must not contain a newline; the writer adds the record delimiter.
func (w *Writer) TryAppend(line []byte) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if len(line) > maxLineLen {
		return ErrLineTooLarge
	}
	if w.cfg.CopyLine && len(line) > 0 {
		cp := make([]byte, len(line))
		copy(cp, line)
		line = cp
	}

	select {
	case w.ch <- line:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context, file *os.File) {
	var (
		buf         = bufio.NewWriterSize(file, w.cfg.BufferSize)
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := closeFile(buf, file); err != nil && w.Err() == nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drainNonBlocking(buf)
			return
		case line, ok := <-w.ch:
			if !ok {
				return
			}
			if err := writeLine(buf, line); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := buf.Flush(); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := buf.Flush(); err != nil {
				w.setErr(err)
				return
			}
			if err := file.Sync(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drainNonBlocking(buf *bufio.Writer) {
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				return
			}
			if err := writeLine(buf, line); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func writeLine(buf *bufio.Writer, line []byte) error {
	if _, err := buf.Write(line); err != nil {
		return err
	}
	return buf.WriteByte('\n')
}

func closeFile(buf *bufio.Writer, file *os.File) error {
	if err := buf.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}
