// Package pagerank computes PageRank over the link graph of a crawled corpus
// as a chain of rounds: one initialization round that builds the graph with
// every rank seeded to 1, then a number of calculation rounds.
package pagerank

import (
	"context"

	"github.com/wolfgangmeyers/mrsearch/mapreduce"
)

// Run computes rounds iterations of PageRank over corpus and publishes the
// final node records at outputDir.
func Run(
	ctx context.Context,
	runner *mapreduce.Runner,
	corpus mapreduce.DocumentSource,
	rounds int,
	outputDir string,
) (mapreduce.Location, error) {
	initJob := NewInitJob()
	calcJob := NewCalcJob()
	init := func(ctx context.Context, input mapreduce.DocumentSource, dest string) (mapreduce.Location, error) {
		return mapreduce.RunRound(ctx, runner, initJob, input, dest)
	}
	calc := func(ctx context.Context, input mapreduce.DocumentSource, dest string) (mapreduce.Location, error) {
		return mapreduce.RunRound(ctx, runner, calcJob, input, dest)
	}
	return mapreduce.RunChain(ctx, runner, corpus, init, calc, rounds, outputDir)
}

// ReadNodes loads every node of a round output.
func ReadNodes(ctx context.Context, location mapreduce.Location) ([]Node, error) {
	records, err := location.Records(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(records))
	for _, record := range records {
		node, err := ParseNode(record)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
