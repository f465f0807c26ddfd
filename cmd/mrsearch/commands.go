package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/wolfgangmeyers/mrsearch/invindex"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
	"github.com/wolfgangmeyers/mrsearch/pagerank"
	"github.com/wolfgangmeyers/mrsearch/queue"
	"github.com/wolfgangmeyers/mrsearch/search"
)

var errUsage = errors.New("usage: mrsearch <index|pagerank|load|search|submit|worker> [arguments]")

// run dispatches a subcommand. Results meant for the user go to out.
func run(ctx context.Context, args []string, conf *mapreduce.Configuration, logger *logrus.Logger, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]
	switch command {
	case "index":
		return runIndex(ctx, args, conf, logger)
	case "pagerank":
		return runPageRank(ctx, args, conf, logger)
	case "load":
		return runLoad(ctx, args, conf, logger, out)
	case "search":
		return runSearch(args, conf, logger, out)
	case "submit":
		return runSubmit(ctx, args, conf, logger, out)
	case "worker":
		return runWorker(ctx, conf, logger)
	}
	return fmt.Errorf("unknown command '%v'\n%w", command, errUsage)
}

func runIndex(ctx context.Context, args []string, conf *mapreduce.Configuration, logger *logrus.Logger) error {
	if len(args) != 2 {
		return errors.New("usage: mrsearch index <input> <output>")
	}
	_, err := executeJob(ctx, &queue.JobRequest{Kind: queue.KindIndex, Input: args[0], Output: args[1]}, conf, logger)
	return err
}

func runPageRank(ctx context.Context, args []string, conf *mapreduce.Configuration, logger *logrus.Logger) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: mrsearch pagerank <input> <output> <iterations> [temp-dir]")
	}
	iterations, err := strconv.Atoi(args[2])
	if err != nil || iterations < 0 {
		return fmt.Errorf("iterations must be a non-negative integer, got '%v'", args[2])
	}
	if len(args) == 4 {
		override := *conf
		override.TempDir = args[3]
		conf = &override
	}
	request := &queue.JobRequest{Kind: queue.KindPageRank, Input: args[0], Output: args[1], Iterations: iterations}
	_, err = executeJob(ctx, request, conf, logger)
	return err
}

func runLoad(ctx context.Context, args []string, conf *mapreduce.Configuration, logger *logrus.Logger, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: mrsearch load <index-output> <pagerank-output>")
	}
	store, err := search.Open(conf.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	terms, err := store.LoadIndex(ctx, mapreduce.NewLocation(args[0]), conf.IndexDelimiter)
	if err != nil {
		return err
	}
	nodes, err := store.LoadPageRank(ctx, mapreduce.NewLocation(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loaded %v terms and %v ranks into %v\n", terms, nodes, conf.DatabasePath)
	return nil
}

func runSearch(args []string, conf *mapreduce.Configuration, logger *logrus.Logger, out io.Writer) error {
	flags := flag.NewFlagSet("search", flag.ContinueOnError)
	flags.SetOutput(out)
	limit := flags.Int("limit", search.DefaultLimit, "maximum number of results")
	stemmed := flags.Bool("stem", false, "also match terms sharing the query's stem")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: mrsearch search [-limit n] [-stem] <term>")
	}
	store, err := search.Open(conf.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	results, err := store.Query(flags.Arg(0), *limit, *stemmed)
	if err != nil {
		return err
	}
	for _, result := range results {
		if result.Ranked {
			fmt.Fprintf(out, "%v\t%v\n", result.URL, pagerank.FormatRank(result.Rank))
		} else {
			fmt.Fprintf(out, "%v\t-\n", result.URL)
		}
	}
	return nil
}

func runSubmit(ctx context.Context, args []string, conf *mapreduce.Configuration, logger *logrus.Logger, out io.Writer) error {
	flags := flag.NewFlagSet("submit", flag.ContinueOnError)
	flags.SetOutput(out)
	iterations := flags.Int("iterations", conf.Iterations, "PageRank calculation rounds")
	publish := flags.String("publish", "", "key prefix to publish the output under in the output bucket")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return errors.New("usage: mrsearch submit [-iterations n] [-publish prefix] <index|pagerank> <input> <output>")
	}
	request := &queue.JobRequest{
		Kind:    flags.Arg(0),
		Input:   flags.Arg(1),
		Output:  flags.Arg(2),
		Publish: *publish,
	}
	if request.Kind == queue.KindPageRank {
		request.Iterations = *iterations
	}
	jobQueue, err := queue.NewSQSQueue(queue.NewSQSClient(conf), conf.QueueURL, nil, logger)
	if err != nil {
		return err
	}
	jobID, err := jobQueue.Submit(ctx, request)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, jobID)
	return nil
}

func runWorker(ctx context.Context, conf *mapreduce.Configuration, logger *logrus.Logger) error {
	jobQueue, err := queue.NewSQSQueue(queue.NewSQSClient(conf), conf.QueueURL, nil, logger)
	if err != nil {
		return err
	}
	jobQueue.Run(ctx, func(ctx context.Context, request *queue.JobRequest) error {
		_, err := executeJob(ctx, request, conf, logger)
		return err
	})
	return nil
}

// executeJob runs the pipeline a request names and publishes the result to
// the output bucket when the request asks for it. A request to publish an
// output that is already complete, left by an attempt whose publish failed,
// only retries the publish.
func executeJob(ctx context.Context, request *queue.JobRequest, conf *mapreduce.Configuration, logger *logrus.Logger) (mapreduce.Location, error) {
	if err := request.Validate(); err != nil {
		return mapreduce.Location{}, err
	}
	if request.Publish != "" {
		if conf.OutputBucket == "" {
			return mapreduce.Location{}, fmt.Errorf("%w: publishing requires an output bucket", queue.ErrInvalidRequest)
		}
		if _, err := os.Stat(filepath.Join(request.Output, mapreduce.SuccessMarker)); err == nil {
			logger.WithField("output", request.Output).Info("Output already complete, publishing")
			location := mapreduce.NewLocation(request.Output)
			return location, publish(location, request, conf, logger)
		}
	}
	input, err := mapreduce.NewInput(request.Input, conf)
	if err != nil {
		return mapreduce.Location{}, err
	}
	runner := mapreduce.NewRunner(&mapreduce.RunnerConfiguration{
		Configuration: conf,
		Logger:        logger,
	})
	var location mapreduce.Location
	switch request.Kind {
	case queue.KindIndex:
		location, err = invindex.Run(ctx, runner, input, request.Output)
	case queue.KindPageRank:
		location, err = pagerank.Run(ctx, runner, input, request.Iterations, request.Output)
	}
	if err != nil {
		return mapreduce.Location{}, err
	}
	if request.Publish != "" {
		return location, publish(location, request, conf, logger)
	}
	return location, nil
}

// newOutputFileWriter returns the writer outputs are published through
var newOutputFileWriter = func(conf *mapreduce.Configuration) mapreduce.OutputFileWriter {
	return mapreduce.NewS3OutputFileWriter(mapreduce.NewS3Client(conf), conf.OutputBucket, nil)
}

func publish(location mapreduce.Location, request *queue.JobRequest, conf *mapreduce.Configuration, logger *logrus.Logger) error {
	if err := mapreduce.Publish(location, newOutputFileWriter(conf), request.Publish); err != nil {
		return fmt.Errorf("publishing '%v': %w", location.Path(), err)
	}
	logger.WithFields(logrus.Fields{
		"bucket": conf.OutputBucket,
		"prefix": request.Publish,
	}).Info("Output published")
	return nil
}
