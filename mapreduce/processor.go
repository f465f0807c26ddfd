package mapreduce

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// indexedFile is an input file together with its position in the input listing
type indexedFile struct {
	index int
	file  FileDownload
}

// A mapTask is the unit of work handed to a RecordProcessor.
type mapTask struct {
	files []indexedFile
	size  int64
}

// planTasks groups input files into map tasks. A task holds at most
// maxSplitSize bytes, unless a single file is larger, and the split is
// shrunk so that every worker in the pool has a task to work on.
func planTasks(files []FileDownload, maxSplitSize int64, poolSize int) []mapTask {
	var total int64
	for _, file := range files {
		total += file.Size()
	}
	splitSize := maxSplitSize
	if poolSize > 0 && total/int64(poolSize) < splitSize {
		splitSize = total / int64(poolSize)
	}
	if splitSize < 1 {
		splitSize = 1
	}
	tasks := []mapTask{}
	current := mapTask{}
	for i, file := range files {
		if len(current.files) > 0 && current.size+file.Size() > splitSize {
			tasks = append(tasks, current)
			current = mapTask{}
		}
		current.files = append(current.files, indexedFile{index: i, file: file})
		current.size += file.Size()
	}
	if len(current.files) > 0 {
		tasks = append(tasks, current)
	}
	return tasks
}

// emission is a single key/value pair produced by a Mapper
type emission[V any] struct {
	key   string
	value V
}

// emissionBatch holds every emission of one document, in emission order.
type emissionBatch[V any] struct {
	doc   DocumentID
	items []emission[V]
}

// A RecordProcessor is responsible for converting the files of map tasks
// into batches of emissions.
type RecordProcessor[V any] struct {
	job        *Job[V]                 // Reader and mapper for the round
	taskInput  <-chan mapTask          // Input channel of map tasks
	dataOutput chan<- emissionBatch[V] // Output channel of emission batches
	monitor    *Monitor                // Counts processed documents
	logger     logrus.FieldLogger      // Log events
}

// NewRecordProcessor returns a new instance of RecordProcessor
//
// * job - Reader and mapper for the round
// * taskInput - Input channel of map tasks
// * dataOutput - Output channel of emission batches
// * monitor - Counts processed documents
// * logger - Log events
func NewRecordProcessor[V any](
	job *Job[V],
	taskInput <-chan mapTask,
	dataOutput chan<- emissionBatch[V],
	monitor *Monitor,
	logger logrus.FieldLogger,
) *RecordProcessor[V] {
	processor := new(RecordProcessor[V])
	processor.job = job
	processor.taskInput = taskInput
	processor.dataOutput = dataOutput
	processor.monitor = monitor
	processor.logger = logger.WithField("component", "processor")
	return processor
}

// Run pulls map tasks until the task channel is closed. A non-nil error
// means the round can not complete: an input file could not be read,
// a mapper returned a fatal error, or ctx was cancelled.
func (processor *RecordProcessor[V]) Run(ctx context.Context) error {
	for task := range processor.taskInput {
		for _, file := range task.files {
			if err := processor.processFile(ctx, file); err != nil {
				return err
			}
		}
	}
	return nil
}

func (processor *RecordProcessor[V]) processFile(ctx context.Context, file indexedFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filename := file.file.Filename()
	handle, err := file.file.Open()
	if err != nil {
		return fmt.Errorf("opening input file '%v': %w", filename, err)
	}
	defer handle.Close()
	record := 0
	var mapErr error
	err = processor.job.Reader.Read(handle, filename, func(content []byte) {
		if mapErr != nil {
			return
		}
		doc := &Document{
			ID:      DocumentID{File: file.index, Record: record},
			Path:    file.file.Name(),
			Content: content,
		}
		record++
		mapErr = processor.mapDocument(ctx, doc)
	})
	if mapErr != nil {
		return mapErr
	}
	if err != nil {
		return err
	}
	processor.monitor.FileRead()
	return nil
}

// mapDocument runs the mapper over a single document. Emissions are
// buffered so that a failing document contributes nothing to the round.
func (processor *RecordProcessor[V]) mapDocument(ctx context.Context, doc *Document) error {
	batch := emissionBatch[V]{doc: doc.ID}
	err := processor.safeMap(doc, func(key string, value V) {
		batch.items = append(batch.items, emission[V]{key: key, value: value})
	})
	if err != nil {
		if IsFatal(err) {
			return fmt.Errorf("mapping '%v': %w", doc.Path, err)
		}
		processor.logger.WithFields(logrus.Fields{
			"filename": doc.Path,
			"record":   doc.ID.Record,
		}).Warnf("Skipping document: '%v'", err.Error())
		processor.monitor.DocumentFailed()
		return nil
	}
	processor.monitor.DocumentMapped(len(batch.items))
	if len(batch.items) == 0 {
		return nil
	}
	select {
	case processor.dataOutput <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (processor *RecordProcessor[V]) safeMap(doc *Document, emit func(string, V)) (err error) {
	defer recoverAsError(&err)
	return processor.job.Mapper.Map(doc, emit)
}
