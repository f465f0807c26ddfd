package mapreduce

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
)

// maxRecordSize bounds the length of a single line read by LineReader.
const maxRecordSize = 64 * 1024 * 1024

// A RecordReader is responsible for turning an open file
// into a stream of document contents.
type RecordReader interface {
	// Reads a file and sends the content of each document to callback
	//
	// * file - The open file that should be read
	// * filename - Storage path of the file
	// * callback - Should be called for each document that is read
	Read(file io.Reader, filename string, callback func(content []byte)) error
}

// WholeFileReader implements the RecordReader interface. Each file
// is read as a single document.
type WholeFileReader struct{}

// NewWholeFileReader returns a new instance of WholeFileReader
func NewWholeFileReader() *WholeFileReader {
	return new(WholeFileReader)
}

// Read sends the entire content of the file to callback
func (reader *WholeFileReader) Read(file io.Reader, filename string, callback func(content []byte)) error {
	data, err := ioutil.ReadAll(file)
	if err != nil {
		return fmt.Errorf("reading '%v': %w", filename, err)
	}
	callback(data)
	return nil
}

// LineReader implements the RecordReader interface. It reads newline
// delimited text and sends each non-empty line as a document.
// Files with a .gz suffix are decompressed.
// Newline characters are not included in the output.
type LineReader struct{}

// NewLineReader returns a new instance of LineReader
func NewLineReader() *LineReader {
	return new(LineReader)
}

// Read sends each non-empty line of the file to callback
func (reader *LineReader) Read(file io.Reader, filename string, callback func(content []byte)) error {
	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("opening gzip file '%v': %w", filename, err)
		}
		defer gzReader.Close()
		file = gzReader
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		// the scanner reuses its buffer
		content := make([]byte, len(line))
		copy(content, line)
		callback(content)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading lines of '%v': %w", filename, err)
	}
	return nil
}

// ParseRecord splits a record line into key and value at the first tab.
// A line without a tab is a record with an empty value.
func ParseRecord(line string) KeyValue {
	i := strings.IndexByte(line, '\t')
	if i < 0 {
		return KeyValue{Key: line}
	}
	return KeyValue{Key: line[:i], Value: line[i+1:]}
}

// FormatRecord renders a record as written in part files, without the
// trailing newline. Records with an empty value have no tab segment.
func FormatRecord(record KeyValue) string {
	if record.Value == "" {
		return record.Key
	}
	return record.Key + "\t" + record.Value
}
