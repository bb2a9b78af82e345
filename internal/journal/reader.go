package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"main/internal/model"
)

// CorruptRecord reports a record that failed to decode. The reader
// resynchronizes at the next line boundary, so callers may keep reading
// after logging the warning.
type CorruptRecord struct {
	Offset int64
	Err    error
}

func (e *CorruptRecord) Error() string {
	return fmt.Sprintf("corrupt journal record at offset %d: %v", e.Offset, e.Err)
}

func (e *CorruptRecord) Unwrap() error {
	return e.Err
}

// Reader decodes journal records sequentially. A truncated final line
// (crash mid-write) is treated as absent, not malformed.
type Reader struct {
	path   string
	file   *os.File
	br     *bufio.Reader
	offset int64
}

// OpenReader opens an event log for sequential read. It fails when the
// path does not exist.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		path: path,
		file: file,
		br:   bufio.NewReader(file),
	}, nil
}

// Next returns the next event and the byte offset its record started at.
// It returns io.EOF at the end of the log and *CorruptRecord for a
// malformed line; after a CorruptRecord the reader is already positioned
// at the next line boundary.
func (r *Reader) Next() (model.Event, int64, error) {
	for {
		start := r.offset
		line, err := r.br.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// A partial line without the record delimiter is an
				// interrupted append; treat it as absent.
				return model.Event{}, start, io.EOF
			}
			return model.Event{}, start, err
		}
		r.offset += int64(len(line))

		line = line[:len(line)-1]
		if len(line) == 0 {
			continue
		}

		event, err := model.Decode(line)
		if err != nil {
			return model.Event{}, start, &CorruptRecord{Offset: start, Err: err}
		}
		return event, start, nil
	}
}

// Reset repositions the reader at the start of the log. A fresh pass over
// the same path always yields the same sequence of records.
func (r *Reader) Reset() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.br.Reset(r.file)
	r.offset = 0
	return nil
}

// Path returns the log path this reader was opened for.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
