package mapreduce

import (
	"os"
	"path/filepath"
)

// LocalOutputFileWriter implements the OutputFileWriter interface.
// Writes files to the local file system
type LocalOutputFileWriter struct{}

// NewLocalOutputFileWriter returns a new instance of LocalOutputFileWriter
func NewLocalOutputFileWriter() *LocalOutputFileWriter {
	return new(LocalOutputFileWriter)
}

// WriteOutputFile writes out the specified file to the local filesystem,
// creating parent folders as needed.
func (fileWriter *LocalOutputFileWriter) WriteOutputFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
