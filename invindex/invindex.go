// Package invindex builds an inverted index over a crawled corpus: for each
// term, the distinct canonical URLs of the documents containing it.
package invindex

import (
	"context"
	"regexp"
	"strings"

	"github.com/wolfgangmeyers/mrsearch/htmltext"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
	"github.com/wolfgangmeyers/mrsearch/weburl"
)

// JobName identifies inverted index rounds in logs and status output.
const JobName = "inverted-index"

var (
	punctuation = regexp.MustCompile(`["'\[\]()$#?!*.,\-¿¡%+]`)
	validTerm   = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// Tokenize splits text on whitespace and returns the valid terms in order of
// occurrence. Punctuation is stripped from each token and tokens that are
// not purely alphanumeric afterwards are dropped. Case is preserved.
func Tokenize(text string) []string {
	terms := []string{}
	for _, token := range strings.Fields(text) {
		term := punctuation.ReplaceAllString(token, "")
		if validTerm.MatchString(term) {
			terms = append(terms, term)
		}
	}
	return terms
}

// ValidTerm reports whether term could have been produced by Tokenize.
func ValidTerm(term string) bool {
	return validTerm.MatchString(term)
}

// Mapper emits a (term, document URL) pair for every term occurrence.
type Mapper struct{}

// Map tokenizes the body text of an HTML document.
func (mapper *Mapper) Map(doc *mapreduce.Document, emit func(key string, value string)) error {
	url, err := weburl.FromPath(doc.Path)
	if err != nil {
		return mapreduce.Fatal(err)
	}
	page, err := htmltext.Extract(doc.Content)
	if err != nil {
		return err
	}
	for _, term := range Tokenize(page.Text) {
		emit(term, url)
	}
	return nil
}

// Reducer joins the distinct URLs of a term in order of first occurrence.
type Reducer struct {
	delimiter string
}

// NewReducer returns a new instance of Reducer
//
// * delimiter - Separates URLs in the output value
func NewReducer(delimiter string) *Reducer {
	reducer := new(Reducer)
	reducer.delimiter = delimiter
	return reducer
}

// Reduce drops repeated URLs and joins the rest.
func (reducer *Reducer) Reduce(term string, urls []string) (mapreduce.KeyValue, error) {
	seen := make(map[string]bool, len(urls))
	distinct := make([]string, 0, len(urls))
	for _, url := range urls {
		if !seen[url] {
			seen[url] = true
			distinct = append(distinct, url)
		}
	}
	return mapreduce.KeyValue{Key: term, Value: strings.Join(distinct, reducer.delimiter)}, nil
}

// NewJob returns the inverted index round over whole HTML documents.
func NewJob(delimiter string) *mapreduce.Job[string] {
	return &mapreduce.Job[string]{
		Name:    JobName,
		Reader:  mapreduce.NewWholeFileReader(),
		Mapper:  new(Mapper),
		Reducer: NewReducer(delimiter),
	}
}

// Run builds the inverted index of corpus and publishes it at dest, using
// the delimiter of the runner's configuration.
func Run(ctx context.Context, runner *mapreduce.Runner, corpus mapreduce.DocumentSource, dest string) (mapreduce.Location, error) {
	job := NewJob(runner.Configuration().IndexDelimiter)
	return mapreduce.RunRound(ctx, runner, job, corpus, dest)
}
