package mapreduce

import (
	"sort"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultOutputStoreCapacity is set to 100K. This is the initial capacity of the OutputStore.
	DefaultOutputStoreCapacity = 100 * 1000
	// BufferSize is the per-worker buffer of channels between round components.
	BufferSize = 100
)

// sequencedValue remembers which document emitted a value
type sequencedValue[V any] struct {
	doc   DocumentID
	value V
}

// The OutputStore performs the shuffle: it accumulates every emission of
// the round, grouped by key.
//
// The store is the only component with visibility across documents. Its
// grouping map is owned by the store goroutine until the input channel is
// closed, after which the complete groups are handed over exactly once.
type OutputStore[V any] struct {
	dataInput <-chan emissionBatch[V]        // Input channel of emission batches
	data      map[string][]sequencedValue[V] // Grouped values
	monitor   *Monitor                       // Counts distinct keys
	logger    logrus.FieldLogger             // Log events
}

// NewOutputStore returns a new instance of OutputStore
//
// * dataInput - Input channel of emission batches
// * monitor - Counts distinct keys
// * logger - Log events
func NewOutputStore[V any](
	dataInput <-chan emissionBatch[V],
	monitor *Monitor,
	logger logrus.FieldLogger,
) *OutputStore[V] {
	store := new(OutputStore[V])
	store.dataInput = dataInput
	store.data = make(map[string][]sequencedValue[V], DefaultOutputStoreCapacity)
	store.monitor = monitor
	store.logger = logger.WithField("component", "store")
	return store
}

// Run launches its own goroutine. The store receives batches until the input
// channel is closed, then sends the grouped values on the returned channel.
// Values of a key are ordered by emitting document, and by emission order
// within a document.
func (store *OutputStore[V]) Run() <-chan map[string][]V {
	result := make(chan map[string][]V, 1)
	go func() {
		defer CatchFatalError(store.logger)()
		for batch := range store.dataInput {
			for _, item := range batch.items {
				values, exists := store.data[item.key]
				if !exists {
					store.monitor.KeyGrouped()
				}
				store.data[item.key] = append(values, sequencedValue[V]{doc: batch.doc, value: item.value})
			}
		}
		result <- store.flush()
	}()
	return result
}

func (store *OutputStore[V]) flush() map[string][]V {
	groups := make(map[string][]V, len(store.data))
	for key, values := range store.data {
		less := func(i, j int) bool { return values[i].doc.Less(values[j].doc) }
		if !sort.SliceIsSorted(values, less) {
			sort.SliceStable(values, less)
		}
		plain := make([]V, len(values))
		for i, value := range values {
			plain[i] = value.value
		}
		groups[key] = plain
	}
	store.data = nil
	return groups
}
