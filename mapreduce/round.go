package mapreduce

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// A RunnerConfiguration contains the dependencies that a Runner
// will need to function. Some dependencies are optional and have default values.
type RunnerConfiguration struct {
	Configuration *Configuration     // Optional - Pool sizes and output settings. Defaults to DefaultConfiguration()
	StatusWriter  StatusWriter       // Optional - Sends status notifications. Defaults to a LogStatusWriter
	Clock         clockwork.Clock    // Optional - Pauses and checks the time. Defaults to an instance of RealClock
	Logger        logrus.FieldLogger // Optional - passes in a logger that will be used by all components
}

// The Runner executes rounds: map over every input document, group
// emissions by key, reduce every key and publish the result.
type Runner struct {
	conf         *Configuration     // Pool sizes and output settings
	statusWriter StatusWriter       // Sends status notifications
	clock        clockwork.Clock    // Used for status intervals
	outputWriter *OutputWriter      // Writes part files
	logger       logrus.FieldLogger // Log system events and errors
}

// NewRunner returns a new instance of `Runner`
//
// * configuration - Contains the dependencies for rounds to run.
func NewRunner(configuration *RunnerConfiguration) *Runner {
	runner := new(Runner)
	runner.conf = configuration.Configuration
	if runner.conf == nil {
		runner.conf = DefaultConfiguration()
	}
	runner.logger = configuration.Logger
	if runner.logger == nil {
		runner.logger = logrus.New()
	}
	runner.logger = runner.logger.WithField("component", "runner")
	runner.clock = configuration.Clock
	if runner.clock == nil {
		runner.clock = clockwork.NewRealClock()
	}
	runner.statusWriter = configuration.StatusWriter
	if runner.statusWriter == nil {
		runner.statusWriter = NewLogStatusWriter(runner.logger)
	}
	runner.outputWriter = NewOutputWriter(NewLocalOutputFileWriter(), runner.conf.CompressOutput, runner.logger)
	return runner
}

// Configuration returns the configuration rounds are run with
func (runner *Runner) Configuration() *Configuration {
	return runner.conf
}

// Logger returns the logger used by the runner
func (runner *Runner) Logger() logrus.FieldLogger {
	return runner.logger
}

// RunRound executes one complete map/shuffle/reduce pass of job over input
// and publishes the output records at dest, which must not exist yet.
//
// Output is written into a staging folder and renamed to dest only after
// every reduce has succeeded. If the round fails or ctx is cancelled,
// nothing is published.
func RunRound[V any](ctx context.Context, runner *Runner, job *Job[V], input DocumentSource, dest string) (Location, error) {
	logger := runner.logger.WithFields(logrus.Fields{
		"round":  job.Name,
		"output": dest,
	})
	started := runner.clock.Now()
	files, err := input.Files(ctx)
	if err != nil {
		return Location{}, fmt.Errorf("round '%v': %w", job.Name, err)
	}
	staging, err := newStaging(dest)
	if err != nil {
		return Location{}, fmt.Errorf("round '%v': %w", job.Name, err)
	}
	published := false
	defer func() {
		if !published {
			os.RemoveAll(staging)
		}
	}()

	logger.Infof("Round starting; %v input files, %v map workers, %v reduce workers",
		len(files), runner.conf.MapPoolSize, runner.conf.ReducePoolSize)
	monitor := NewMonitor(job.Name, runner.statusWriter, runner.clock, logger)
	monitor.Run()
	groups, err := runMapPhase(ctx, runner.conf, job, files, monitor, logger)
	if err == nil {
		err = runReducePhase(ctx, runner.conf, job, groups, runner.outputWriter, staging, monitor)
	}
	if err == nil {
		// A cancellation that arrived after the last reduce still discards the round
		err = ctx.Err()
	}
	monitor.Stop(err == nil)
	if err != nil {
		logger.Errorf("Round failed: '%v'", err.Error())
		return Location{}, fmt.Errorf("round '%v': %w", job.Name, err)
	}
	location, err := commit(staging, dest)
	if err != nil {
		return Location{}, fmt.Errorf("round '%v': %w", job.Name, err)
	}
	published = true
	logger.Infof("Round complete. Time elapsed: %v", runner.clock.Since(started))
	return location, nil
}

// runMapPhase maps every input document and returns the complete grouping
// of emissions by key. It returns only after every map task has finished.
func runMapPhase[V any](
	ctx context.Context,
	conf *Configuration,
	job *Job[V],
	files []FileDownload,
	monitor *Monitor,
	logger logrus.FieldLogger,
) (map[string][]V, error) {
	mapCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := planTasks(files, conf.MaxSplitSize, conf.MapPoolSize)
	taskQueue := make(chan mapTask)
	dataChannel := make(chan emissionBatch[V], BufferSize*conf.MapPoolSize)
	store := NewOutputStore[V](dataChannel, monitor, logger)
	groupsOutput := store.Run()

	errs := make(chan error, conf.MapPoolSize)
	var workers sync.WaitGroup
	for i := 0; i < conf.MapPoolSize; i++ {
		processor := NewRecordProcessor[V](job, taskQueue, dataChannel, monitor, logger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := processor.Run(mapCtx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
Feed:
	for _, task := range tasks {
		select {
		case taskQueue <- task:
		case <-mapCtx.Done():
			break Feed
		}
	}
	close(taskQueue)
	workers.Wait()
	// Every map task is done: the shuffle may hand over its groups
	close(dataChannel)
	groups := <-groupsOutput
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// runReducePhase reduces every key and writes one sorted part file per shard
// into folder.
func runReducePhase[V any](
	ctx context.Context,
	conf *Configuration,
	job *Job[V],
	groups map[string][]V,
	outputWriter *OutputWriter,
	folder string,
	monitor *Monitor,
) error {
	reduceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shards := make([][]string, conf.OutputShards)
	for key := range groups {
		shardNum := shardFor(key, conf.OutputShards)
		shards[shardNum] = append(shards[shardNum], key)
	}

	queue := make(chan int)
	errs := make(chan error, conf.ReducePoolSize)
	var workers sync.WaitGroup
	for i := 0; i < conf.ReducePoolSize; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for shardNum := range queue {
				records, err := reduceShard(reduceCtx, job.Reducer, shards[shardNum], groups, monitor)
				if err == nil {
					_, err = outputWriter.WriteShard(folder, shardNum, records)
				}
				if err != nil {
					errs <- err
					cancel()
					return
				}
				monitor.RecordsWritten(len(records))
			}
		}()
	}
Feed:
	for shardNum := range shards {
		select {
		case queue <- shardNum:
		case <-reduceCtx.Done():
			break Feed
		}
	}
	close(queue)
	workers.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	return ctx.Err()
}

// reduceShard reduces the keys of one shard, in key order, and returns
// the output records sorted by output key.
func reduceShard[V any](
	ctx context.Context,
	reducer Reducer[V],
	keys []string,
	groups map[string][]V,
	monitor *Monitor,
) ([]KeyValue, error) {
	sort.Strings(keys)
	records := make([]KeyValue, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := safeReduce(reducer, key, groups[key])
		if err != nil {
			return nil, fmt.Errorf("reducing key '%v': %w", key, err)
		}
		records = append(records, record)
		monitor.KeyReduced()
	}
	sort.Sort(KeyValues(records))
	return records, nil
}

func safeReduce[V any](reducer Reducer[V], key string, values []V) (record KeyValue, err error) {
	defer recoverAsError(&err)
	return reducer.Reduce(key, values)
}
