package mapreduce

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrNoInput is returned when an input location does not exist.
var ErrNoInput = errors.New("input location does not exist")

// FileDownload represents an input file that can be opened for reading
type FileDownload interface {
	// Open gets a handle on an open data file
	Open() (io.ReadCloser, error)
	// Filename returns the storage path of the data file
	Filename() string
	// Name returns the path of the data file relative to the input root,
	// with "/" separators
	Name() string
	// Size returns the size of the file in bytes
	Size() int64
}

// A DocumentSource enumerates the files that make up the input of a round.
type DocumentSource interface {
	// Files lists every input file. The listing order is stable and
	// determines the DocumentID of each document.
	Files(ctx context.Context) ([]FileDownload, error)
}

// NewInput returns a DocumentSource for the given location. Locations of the
// form s3://bucket/prefix are read from S3, anything else from the local file system.
func NewInput(location string, conf *Configuration) (DocumentSource, error) {
	if strings.HasPrefix(location, S3Scheme) {
		bucket, prefix := SplitS3Location(location)
		return NewS3Input(NewS3Client(conf), bucket, prefix, nil)
	}
	return NewLocalInput(location), nil
}

// LocalFileDownload points to a source file in the local file system
type LocalFileDownload struct {
	filename string
	name     string
	size     int64
}

// NewLocalFileDownload returns a new LocalFileDownload object
//
// * filename - Path used to open the file
// * name - Path of the file relative to the input root
// * size - Size of the file in bytes
func NewLocalFileDownload(filename string, name string, size int64) *LocalFileDownload {
	return &LocalFileDownload{filename: filename, name: name, size: size}
}

// Open gets a handle on an open data file
func (fileDownload *LocalFileDownload) Open() (io.ReadCloser, error) {
	return os.Open(fileDownload.filename)
}

// Filename returns the name of the file
func (fileDownload *LocalFileDownload) Filename() string {
	return fileDownload.filename
}

// Name returns the path of the file relative to the input root
func (fileDownload *LocalFileDownload) Name() string {
	return fileDownload.name
}

// Size returns the size of the file in bytes
func (fileDownload *LocalFileDownload) Size() int64 {
	return fileDownload.size
}

// hiddenFile reports whether a file or folder should be excluded from input listings.
// Markers such as _SUCCESS and staging folders are hidden.
func hiddenFile(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
