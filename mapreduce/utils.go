package mapreduce

import (
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// WithRetries will continue to attempt an operation
// up to the specified number of retries with an exponential
// backoff. If the operation is still unsuccessful
// after all retries are exhausted (operation returns an error),
// that error is returned.
func WithRetries(clock clockwork.Clock, retries int, operation func() error) error {
	err := operation()
	backoff := time.Second * 2
	for err != nil && retries > 0 {
		clock.Sleep(backoff)
		retries--
		backoff *= 2
		err = operation()
	}
	return err
}

// CatchFatalError returns a function that can be used
// to report panics. Once the error is reported, the process
// exits abnormally.
//
// Usage:
// ```
// defer mapreduce.CatchFatalError(logger)()
// ```
func CatchFatalError(logger logrus.FieldLogger) func() {
	return func() {
		err := recover()
		if err != nil {
			stack := debug.Stack()
			logger.Fatalf("Fatal error in processing: %v\n%v", err, string(stack))
		}
	}
}

// recoverAsError converts a panic into an error stored in err.
func recoverAsError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v\n%v", r, string(debug.Stack()))
	}
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// shardFor returns the output shard a key belongs to.
func shardFor(key string, shards int) int {
	return int(hash(key) % uint32(shards))
}
