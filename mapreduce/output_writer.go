package mapreduce

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// OutputFileWriter writes specific output files.
type OutputFileWriter interface {
	// Write out the specified file
	WriteOutputFile(filepath string, data []byte) error
}

// The OutputWriter is responsible for persisting the reduced records of a round
// as part files. Each shard becomes one file, sorted by key.
type OutputWriter struct {
	fileWriter OutputFileWriter   // Write output files
	compress   bool               // Gzip part files
	logger     logrus.FieldLogger // Log events
}

// NewOutputWriter returns a new instance of OutputWriter
//
// * fileWriter - Write output files
// * compress - Gzip part files
// * logger - Log events
func NewOutputWriter(
	fileWriter OutputFileWriter,
	compress bool,
	logger logrus.FieldLogger,
) *OutputWriter {
	outputWriter := new(OutputWriter)
	outputWriter.fileWriter = fileWriter
	outputWriter.compress = compress
	outputWriter.logger = logger.WithField("component", "output_writer")
	return outputWriter
}

// PartFilename returns the name of a part file for a shard.
func PartFilename(shardNum int, compress bool) string {
	filename := fmt.Sprintf("part-%05d-%v.txt", shardNum, uuid.Must(uuid.NewV4()).String())
	if compress {
		filename += ".gz"
	}
	return filename
}

// WriteShard writes the records of one shard into folder and returns the
// path of the new part file. Records must already be sorted.
func (writer *OutputWriter) WriteShard(folder string, shardNum int, records []KeyValue) (string, error) {
	filename := filepath.Join(folder, PartFilename(shardNum, writer.compress))
	logger := writer.logger.WithFields(logrus.Fields{
		"filename": filename,
		"records":  len(records),
	})
	buffer := new(bytes.Buffer)
	var sink io.Writer = buffer
	var gzWriter *gzip.Writer
	if writer.compress {
		gzWriter = gzip.NewWriter(buffer)
		sink = gzWriter
	}
	fileWriter := bufio.NewWriter(sink)
	for _, record := range records {
		fileWriter.WriteString(FormatRecord(record))
		fileWriter.WriteByte('\n')
	}
	if err := fileWriter.Flush(); err != nil {
		return "", fmt.Errorf("flushing file writer: %w", err)
	}
	if gzWriter != nil {
		if err := gzWriter.Close(); err != nil {
			return "", fmt.Errorf("flushing gzip writer: %w", err)
		}
	}
	if err := writer.fileWriter.WriteOutputFile(filename, buffer.Bytes()); err != nil {
		return "", fmt.Errorf("writing '%v': %w", filename, err)
	}
	logger.Debug("Part file written")
	return filename, nil
}
