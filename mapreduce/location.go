package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// SuccessMarker is written into a location once every part file is in place.
const SuccessMarker = "_SUCCESS"

// ErrOutputExists is returned when a round would overwrite an existing location.
var ErrOutputExists = errors.New("output location already exists")

// A Location is a handle on a published folder of round output. Locations
// are only created for rounds that completed; they never hold partial output.
type Location struct {
	path string
}

// NewLocation returns a handle on an existing folder of round output.
func NewLocation(path string) Location {
	return Location{path: path}
}

// Path returns the folder holding the part files
func (location Location) Path() string {
	return location.path
}

// Input returns a DocumentSource over the part files of the location
func (location Location) Input() DocumentSource {
	return NewLocalInput(location.path)
}

// Records reads every record of the location, file by file.
func (location Location) Records(ctx context.Context) ([]KeyValue, error) {
	files, err := location.Input().Files(ctx)
	if err != nil {
		return nil, err
	}
	reader := NewLineReader()
	records := []KeyValue{}
	for _, file := range files {
		handle, err := file.Open()
		if err != nil {
			return nil, err
		}
		err = reader.Read(handle, file.Filename(), func(content []byte) {
			records = append(records, ParseRecord(string(content)))
		})
		handle.Close()
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Remove deletes the location and everything in it.
func (location Location) Remove() error {
	return os.RemoveAll(location.path)
}

// MoveTo renames the location to path, which must not exist yet.
func (location Location) MoveTo(path string) (Location, error) {
	if _, err := os.Stat(path); err == nil {
		return Location{}, fmt.Errorf("%w: '%v'", ErrOutputExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Location{}, err
	}
	if err := os.Rename(location.path, path); err == nil {
		return Location{path: path}, nil
	}
	// rename fails across file systems: copy into staging next to path instead
	staging, err := newStaging(path)
	if err != nil {
		return Location{}, err
	}
	if err := Publish(location, NewLocalOutputFileWriter(), staging); err != nil {
		os.RemoveAll(staging)
		return Location{}, fmt.Errorf("copying '%v': %w", location.path, err)
	}
	if err := os.Rename(staging, path); err != nil {
		os.RemoveAll(staging)
		return Location{}, fmt.Errorf("publishing '%v': %w", path, err)
	}
	location.Remove()
	return Location{path: path}, nil
}

// Publish copies every file of a location through an OutputFileWriter,
// keeping paths relative to the location under prefix.
func Publish(location Location, writer OutputFileWriter, prefix string) error {
	return filepath.Walk(location.path, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		relative, err := filepath.Rel(location.path, path)
		if err != nil {
			return err
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		target := strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(relative)
		return writer.WriteOutputFile(target, data)
	})
}

// newStaging creates a hidden folder next to dest that a round writes into
// before it is published.
func newStaging(dest string) (string, error) {
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: '%v'", ErrOutputExists, dest)
	}
	parent := filepath.Dir(dest)
	staging := filepath.Join(parent, fmt.Sprintf("_staging-%v-%v", filepath.Base(dest), uuid.Must(uuid.NewV4()).String()))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("creating staging folder: %w", err)
	}
	return staging, nil
}

// commit marks the staging folder complete and renames it to dest.
func commit(staging string, dest string) (Location, error) {
	marker := filepath.Join(staging, SuccessMarker)
	if err := ioutil.WriteFile(marker, []byte{}, 0644); err != nil {
		return Location{}, err
	}
	if err := os.Rename(staging, dest); err != nil {
		return Location{}, fmt.Errorf("publishing '%v': %w", dest, err)
	}
	return Location{path: dest}, nil
}
