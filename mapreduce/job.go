package mapreduce

import (
	"errors"
)

// DocumentID orders documents within a round: by position of the source file
// in the input listing, then by position of the record within that file.
type DocumentID struct {
	File   int
	Record int
}

// Less reports whether id sorts before other.
func (id DocumentID) Less(other DocumentID) bool {
	if id.File != other.File {
		return id.File < other.File
	}
	return id.Record < other.Record
}

// A Document is a single unit of map input. For corpora this is a whole file,
// for intermediate round output it is a single record line.
type Document struct {
	ID      DocumentID // Position of the document in the round input
	Path    string     // Path of the source file relative to the input root
	Content []byte     // Raw document data
}

// KeyValue is a single output record of a round.
type KeyValue struct {
	Key   string
	Value string
}

// KeyValues implements sort.Interface for []KeyValue based on the Key field.
type KeyValues []KeyValue

func (a KeyValues) Len() int           { return len(a) }
func (a KeyValues) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a KeyValues) Less(i, j int) bool { return a[i].Key < a[j].Key }

// A Mapper converts a document into zero to many keyed emissions.
//
// Returning an error marks the document as failed; the emissions of a failed
// document are discarded and the round continues. Wrap the error with Fatal
// to abort the whole round instead.
type Mapper[V any] interface {
	Map(doc *Document, emit func(key string, value V)) error
}

// A Reducer combines every value emitted for a key into a single output record.
// Any error aborts the round.
type Reducer[V any] interface {
	Reduce(key string, values []V) (KeyValue, error)
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc[V any] func(doc *Document, emit func(key string, value V)) error

// Map calls f(doc, emit).
func (f MapperFunc[V]) Map(doc *Document, emit func(key string, value V)) error {
	return f(doc, emit)
}

// ReducerFunc adapts a function to the Reducer interface.
type ReducerFunc[V any] func(key string, values []V) (KeyValue, error)

// Reduce calls f(key, values).
func (f ReducerFunc[V]) Reduce(key string, values []V) (KeyValue, error) {
	return f(key, values)
}

// Job is a map/reduce pair together with the reader that turns input files into documents.
type Job[V any] struct {
	Name    string       // Used in logs and status output
	Reader  RecordReader // Reads input files into documents
	Mapper  Mapper[V]
	Reducer Reducer[V]
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks a map error as fatal for the round.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fatal *fatalError
	return errors.As(err, &fatal)
}
