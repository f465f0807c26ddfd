// Command mrsearch builds an inverted index and PageRank scores over a
// crawled corpus, loads them into a search database and answers queries.
//
//	mrsearch index <input> <output>
//	mrsearch pagerank <input> <output> <iterations> [temp-dir]
//	mrsearch load <index-output> <pagerank-output>
//	mrsearch search [-limit n] [-stem] <term>
//	mrsearch submit [-iterations n] [-publish prefix] <index|pagerank> <input> <output>
//	mrsearch worker
//
// Inputs are local folders or s3://bucket/prefix locations. Configuration is
// read from the JSON file named by MRSEARCH_CONFIG and the environment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfgangmeyers/mrsearch/mapreduce"
)

func main() {
	conf := mapreduce.DefaultConfiguration()
	if err := mapreduce.LoadConfiguration(conf); err != nil {
		mapreduce.NewLogger(conf).Fatalf("Invalid configuration: %v", err.Error())
	}
	logger := mapreduce.NewLogger(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], conf, logger, os.Stdout); err != nil {
		logger.Fatalf("%v", err.Error())
	}
}
