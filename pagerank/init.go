package pagerank

import (
	"strings"

	"github.com/wolfgangmeyers/mrsearch/htmltext"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
	"github.com/wolfgangmeyers/mrsearch/weburl"
)

const (
	// InitJobName identifies initialization rounds in logs and status output.
	InitJobName = "init-page-rank"
	// SeedRank is the rank every document starts with.
	SeedRank = "1"
)

// InitMapper emits the distinct outlinks of a document under its seeded node key.
type InitMapper struct{}

// Map extracts and normalizes the anchors of an HTML document. A document
// without valid outlinks emits a single empty value so it still becomes a node.
func (mapper *InitMapper) Map(doc *mapreduce.Document, emit func(key string, value string)) error {
	self, err := weburl.FromPath(doc.Path)
	if err != nil {
		return mapreduce.Fatal(err)
	}
	page, err := htmltext.Extract(doc.Content)
	if err != nil {
		return err
	}
	key := self + Delimiter + SeedRank
	domain := weburl.Domain(self)
	seen := map[string]bool{}
	for _, href := range page.Links {
		link, ok := weburl.Normalize(domain, href)
		if !ok || !linkable(link) || seen[link] {
			continue
		}
		seen[link] = true
		emit(key, link)
	}
	if len(seen) == 0 {
		emit(key, "")
	}
	return nil
}

// linkable reports whether link can be stored in an outlink list
func linkable(link string) bool {
	return link != "" && !strings.ContainsAny(link, Delimiter+" \t\r\n")
}

// InitReducer joins the outlinks of a node.
type InitReducer struct{}

// Reduce drops empty values and outlinks repeated by documents sharing a URL.
func (reducer *InitReducer) Reduce(key string, links []string) (mapreduce.KeyValue, error) {
	seen := make(map[string]bool, len(links))
	distinct := make([]string, 0, len(links))
	for _, link := range links {
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		distinct = append(distinct, link)
	}
	return mapreduce.KeyValue{Key: key, Value: strings.Join(distinct, Delimiter)}, nil
}

// NewInitJob returns the round that builds the seeded link graph from HTML documents.
func NewInitJob() *mapreduce.Job[string] {
	return &mapreduce.Job[string]{
		Name:    InitJobName,
		Reader:  mapreduce.NewWholeFileReader(),
		Mapper:  new(InitMapper),
		Reducer: new(InitReducer),
	}
}
