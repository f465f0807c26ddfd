package invindex

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
	"github.com/wolfgangmeyers/mrsearch/weburl"
)

// Tests for the inverted index pipeline
type InvIndexTestSuite struct {
	suite.Suite
	root   string
	corpus string
	runner *mapreduce.Runner
}

func (suite *InvIndexTestSuite) SetupTest() {
	suite.root = suite.T().TempDir()
	suite.corpus = filepath.Join(suite.root, "corpus")
	conf := mapreduce.DefaultConfiguration()
	conf.MapPoolSize = 3
	suite.runner = mapreduce.NewRunner(&mapreduce.RunnerConfiguration{
		Configuration: conf,
		Logger:        logrus.New(),
	})
}

func (suite *InvIndexTestSuite) writeCorpus(files map[string]string) {
	for name, content := range files {
		filename := filepath.Join(suite.corpus, name)
		suite.Require().NoError(os.MkdirAll(filepath.Dir(filename), 0755))
		suite.Require().NoError(ioutil.WriteFile(filename, []byte(content), 0644))
	}
}

func (suite *InvIndexTestSuite) run() map[string]string {
	location, err := Run(context.Background(), suite.runner, mapreduce.NewLocalInput(suite.corpus), filepath.Join(suite.root, "index"))
	suite.Require().NoError(err)
	records, err := location.Records(context.Background())
	suite.Require().NoError(err)
	index := map[string]string{}
	for _, record := range records {
		index[record.Key] = record.Value
	}
	return index
}

// Punctuation is stripped and case is kept
func (suite *InvIndexTestSuite) TestTokenize() {
	suite.Require().Equal([]string{"Hello", "World"}, Tokenize("Hello, World!"))
	suite.Require().Equal(
		[]string{"its", "100", "costs", "5", "Que", "Bien", "wellknown"},
		Tokenize("it's (100%) [costs] $5 ¿Que? ¡Bien! well-known"),
	)
	suite.Require().Empty(Tokenize("... -- café naïve @home a_b"))
	suite.Require().Empty(Tokenize("   \n\t "))
}

func (suite *InvIndexTestSuite) TestValidTerm() {
	suite.Require().True(ValidTerm("abc123"))
	suite.Require().False(ValidTerm("ab-c"))
	suite.Require().False(ValidTerm(""))
}

// URLs are deduplicated in order of first occurrence
func (suite *InvIndexTestSuite) TestReducer() {
	record, err := NewReducer(";").Reduce("term", []string{"b.com/x", "a.com/y", "b.com/x", "c.com", "a.com/y"})
	suite.Require().NoError(err)
	suite.Require().Equal(mapreduce.KeyValue{Key: "term", Value: "b.com/x;a.com/y;c.com"}, record)
}

// Two documents produce the expected index
func (suite *InvIndexTestSuite) TestEndToEnd() {
	suite.writeCorpus(map[string]string{
		"example.com/a.html": "<html><body><p>Hello, World!</p></body></html>",
		"example.com/b.html": "<html><body><p>Hello there</p><p>hello</p></body></html>",
	})
	suite.Require().Equal(map[string]string{
		"Hello": "example.com/a|example.com/b",
		"World": "example.com/a",
		"there": "example.com/b",
		"hello": "example.com/b",
	}, suite.run())
}

// Every listed URL belongs to a document containing the term, once
func (suite *InvIndexTestSuite) TestIndexProperties() {
	documents := map[string]string{
		"site.org/a.html":          "<p>alpha beta beta gamma</p>",
		"site.org/docs/b.html":     "<p>beta delta, delta!</p><script>alpha</script>",
		"other.net/c.html":         "<p>gamma (alpha) 42</p>",
		"other.net/deep/er/d.html": "<div>42 42 epsilon</div>",
	}
	suite.writeCorpus(documents)
	terms := map[string]map[string]bool{}
	for name, content := range documents {
		url, err := weburl.FromPath(name)
		suite.Require().NoError(err)
		terms[url] = map[string]bool{}
		for _, term := range Tokenize(strings.NewReplacer("<p>", " ", "</p>", " ", "<div>", " ", "</div>", " ").Replace(content)) {
			terms[url][term] = true
		}
	}
	for term, value := range suite.run() {
		urls := strings.Split(value, "|")
		seen := map[string]bool{}
		for _, url := range urls {
			suite.Require().False(seen[url], "Duplicate url %v for %v", url, term)
			seen[url] = true
			suite.Require().True(terms[url][term], "%v does not contain %v", url, term)
		}
	}
}

// The delimiter comes from the configuration
func (suite *InvIndexTestSuite) TestDelimiter() {
	suite.runner.Configuration().IndexDelimiter = ";"
	suite.writeCorpus(map[string]string{
		"a.com/index.html": "<p>word</p>",
		"b.com/index.html": "<p>word</p>",
	})
	suite.Require().Equal(map[string]string{"word": "a.com/index;b.com/index"}, suite.run())
}

// Documents outside a domain folder abort the round
func (suite *InvIndexTestSuite) TestNoDomain() {
	doc := &mapreduce.Document{Path: "corpus/page", Content: []byte("<p>word</p>")}
	err := new(Mapper).Map(doc, func(string, string) {})
	suite.Require().True(mapreduce.IsFatal(err))
	suite.Require().True(errors.Is(err, weburl.ErrNoDomain))
}

// URLs do not depend on how the input root is written
func (suite *InvIndexTestSuite) TestRelativeDottedRoot() {
	suite.corpus = filepath.Join(suite.root, "my.site", "crawl")
	suite.writeCorpus(map[string]string{"example.com/a.html": "<p>Hello</p>"})
	work := filepath.Join(suite.root, "work")
	suite.Require().NoError(os.MkdirAll(work, 0755))
	previous, err := os.Getwd()
	suite.Require().NoError(err)
	suite.Require().NoError(os.Chdir(work))
	defer os.Chdir(previous)

	location, err := Run(context.Background(), suite.runner, mapreduce.NewLocalInput("../my.site/crawl"), filepath.Join(suite.root, "index"))
	suite.Require().NoError(err)
	records, err := location.Records(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal([]mapreduce.KeyValue{{Key: "Hello", Value: "example.com/a"}}, records)
}

func TestInvIndexTestSuite(t *testing.T) {
	suite.Run(t, new(InvIndexTestSuite))
}
