package pagerank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfgangmeyers/mrsearch/mapreduce"
)

// Delimiter separates the URL from the rank in node keys, and the outlinks
// of a node from each other.
const Delimiter = "|"

// Node is one vertex of the link graph as stored between rounds:
// the record key is url|rank and the value is the outlink list.
type Node struct {
	URL   string
	Rank  float64
	Links []string
}

// ParseNode reads a node from a round output record.
func ParseNode(record mapreduce.KeyValue) (Node, error) {
	i := strings.LastIndex(record.Key, Delimiter)
	if i < 0 {
		return Node{}, fmt.Errorf("node key '%v' has no rank", record.Key)
	}
	rank, err := strconv.ParseFloat(record.Key[i+1:], 64)
	if err != nil {
		return Node{}, fmt.Errorf("node key '%v': %w", record.Key, err)
	}
	node := Node{URL: record.Key[:i], Rank: rank}
	if record.Value != "" {
		node.Links = strings.Split(record.Value, Delimiter)
	}
	return node, nil
}

// Record renders the node in the round output format.
func (node Node) Record() mapreduce.KeyValue {
	return mapreduce.KeyValue{
		Key:   node.URL + Delimiter + FormatRank(node.Rank),
		Value: strings.Join(node.Links, Delimiter),
	}
}

// FormatRank renders a rank with the fewest digits that parse back to the same value.
func FormatRank(rank float64) string {
	return strconv.FormatFloat(rank, 'f', -1, 64)
}
