package mapreduce

import (
	"github.com/sirupsen/logrus"
)

// LogStatusWriter sends status notifications to the log
type LogStatusWriter struct {
	logger logrus.FieldLogger
}

// NewLogStatusWriter returns a new instance of LogStatusWriter
func NewLogStatusWriter(logger logrus.FieldLogger) *LogStatusWriter {
	writer := new(LogStatusWriter)
	writer.logger = logger.WithField("component", "status_writer")
	return writer
}

// WriteStatus logs the current state of a round.
func (writer *LogStatusWriter) WriteStatus(status RoundStatus) {
	logger := writer.logger.WithFields(
		logrus.Fields{
			"round":           status.Round,
			"filesRead":       status.FilesRead,
			"documentsMapped": status.DocumentsMapped,
			"documentsFailed": status.DocumentsFailed,
			"emissions":       status.Emissions,
			"keysGrouped":     status.KeysGrouped,
			"keysReduced":     status.KeysReduced,
			"recordsWritten":  status.RecordsWritten,
		})
	if status.RoundComplete {
		logger.Infof("Round '%v' complete", status.Round)
		return
	}
	logger.Infof(
		"FilesRead=%v, DocumentsMapped=%v, DocumentsFailed=%v, Emissions=%v, KeysReduced=%v, RecordsWritten=%v",
		status.FilesRead,
		status.DocumentsMapped,
		status.DocumentsFailed,
		status.Emissions,
		status.KeysReduced,
		status.RecordsWritten)
}
