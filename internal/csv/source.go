// Package csv provides the row source for table loads.
//
// A source yields one Row at a time from a delimited text file, keyed by the
// file's header row. The header is consumed when the source is opened and is
// never surfaced as a data row. Reads are streaming: memory use is bounded by
// the underlying reader's buffer, not the file size.
package csv

import (
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one data record from the source, keyed by header column name.
// The key set is fixed by the header; a value may be empty.
type Row map[string]string

// ReadError reports a failure reading the source mid-stream.
type ReadError struct {
	Path string
	Line int // 1-based line number, counting the header
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s (line %d): %v", e.Path, e.Line, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// File reads rows from a delimited text file on local disk.
//
// The reader stack skips a UTF-8 BOM if present and replaces invalid UTF-8
// sequences on the fly, so Windows-exported files load without a pre-scan.
type File struct {
	path    string
	file    *os.File
	counter *countingReader
	reader  *stdcsv.Reader
	header  []string
	line    int
}

// Open opens path and consumes its header row.
//
// An entirely empty file yields a source with a nil header whose Next returns
// io.EOF immediately; the caller decides whether that is an error.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}

	counter := &countingReader{reader: newSanitizingReader(newBOMSkippingReader(f))}

	r := stdcsv.NewReader(counter)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	src := &File{
		path:    path,
		file:    f,
		counter: counter,
		reader:  r,
	}

	header, err := r.Read()
	if err == io.EOF {
		return src, nil
	}
	if err != nil {
		f.Close()
		return nil, &ReadError{Path: path, Line: 1, Err: err}
	}

	src.line = 1
	src.header = make([]string, len(header))
	for i, h := range header {
		src.header[i] = cleanHeader(h)
	}
	return src, nil
}

// Header returns the column names in source order. Nil for an empty file.
func (f *File) Header() []string { return f.header }

// Next returns the next data row. It returns io.EOF when the source is
// exhausted and a *ReadError on a mid-stream read failure. Fully blank rows
// are skipped. Fields beyond the header width are dropped; missing trailing
// fields are empty strings.
func (f *File) Next() (Row, error) {
	for {
		record, err := f.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		f.line++
		if err != nil {
			return nil, &ReadError{Path: f.path, Line: f.line, Err: err}
		}

		if isBlank(record) {
			continue
		}

		row := make(Row, len(f.header))
		for i, name := range f.header {
			if i < len(record) {
				row[name] = cleanCell(record[i])
			} else {
				row[name] = ""
			}
		}
		return row, nil
	}
}

// Line returns the 1-based line number of the most recently read row.
func (f *File) Line() int { return f.line }

// BytesRead returns the number of sanitized bytes consumed so far.
func (f *File) BytesRead() int64 { return f.counter.bytesRead }

// Close releases the underlying file handle.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cleanHeader normalizes a header cell: whitespace trimmed and the
// ="value" wrapper some spreadsheet exports emit removed.
func cleanHeader(s string) string {
	return cleanCell(s)
}

func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
