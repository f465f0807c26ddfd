package pagerank

import (
	"fmt"

	"github.com/wolfgangmeyers/mrsearch/mapreduce"
)

const (
	// CalcJobName identifies calculation rounds in logs and status output.
	CalcJobName = "calc-page-rank"
	// DampingFactor is the probability that a surfer follows a link.
	DampingFactor = 0.85
)

// MessageKind tags the payload of a Message.
type MessageKind int

const (
	// RankShare messages carry a share of a source node's rank
	RankShare MessageKind = iota
	// LinkList messages carry the outlink list of the node itself
	LinkList
)

// A Message is the value emitted by CalcMapper. Its Kind says which field is set.
type Message struct {
	Kind  MessageKind
	Rank  float64
	Links string
}

// CalcMapper spreads the rank of a node evenly over its outlinks and passes
// the outlink list on to the next round.
type CalcMapper struct{}

// Map reads one node record.
func (mapper *CalcMapper) Map(doc *mapreduce.Document, emit func(key string, value Message)) error {
	record := mapreduce.ParseRecord(string(doc.Content))
	node, err := ParseNode(record)
	if err != nil {
		return mapreduce.Fatal(err)
	}
	if len(node.Links) > 0 {
		share := node.Rank / float64(len(node.Links))
		for _, link := range node.Links {
			emit(link, Message{Kind: RankShare, Rank: share})
		}
	}
	emit(node.URL, Message{Kind: LinkList, Links: record.Value})
	return nil
}

// CalcReducer sums the contributions to a node and applies the damping formula.
type CalcReducer struct{}

// Reduce returns the node with its new rank. A URL that was only ever a link
// target gets an empty outlink list.
func (reducer *CalcReducer) Reduce(url string, messages []Message) (mapreduce.KeyValue, error) {
	sum := 0.0
	links := ""
	lists := 0
	for _, msg := range messages {
		switch msg.Kind {
		case RankShare:
			sum += msg.Rank
		case LinkList:
			lists++
			links = msg.Links
		}
	}
	if lists > 1 {
		return mapreduce.KeyValue{}, fmt.Errorf("node '%v' has %v outlink lists", url, lists)
	}
	rank := (1 - DampingFactor) + DampingFactor*sum
	return mapreduce.KeyValue{Key: url + Delimiter + FormatRank(rank), Value: links}, nil
}

// NewCalcJob returns the round that computes one PageRank iteration over
// the output of the round before it.
func NewCalcJob() *mapreduce.Job[Message] {
	return &mapreduce.Job[Message]{
		Name:    CalcJobName,
		Reader:  mapreduce.NewLineReader(),
		Mapper:  new(CalcMapper),
		Reducer: new(CalcReducer),
	}
}
