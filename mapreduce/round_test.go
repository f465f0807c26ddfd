package mapreduce

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var errBadDocument = errors.New("bad document")

// Tests for RunRound
type RoundTestSuite struct {
	suite.Suite
	root         string
	corpus       string
	dest         string
	conf         *Configuration
	statusWriter *MockStatusWriter
	logHook      *test.Hook
	runner       *Runner
}

func (suite *RoundTestSuite) SetupTest() {
	suite.root = suite.T().TempDir()
	suite.corpus = filepath.Join(suite.root, "corpus")
	suite.dest = filepath.Join(suite.root, "output")
	suite.conf = DefaultConfiguration()
	suite.conf.MapPoolSize = 4
	suite.conf.ReducePoolSize = 2
	suite.statusWriter = new(MockStatusWriter)
	suite.statusWriter.On("WriteStatus", mock.Anything).Return()
	logger, hook := test.NewNullLogger()
	suite.logHook = hook
	suite.runner = NewRunner(&RunnerConfiguration{
		Configuration: suite.conf,
		StatusWriter:  suite.statusWriter,
		Logger:        logger,
	})
}

// joinJob emits the content of every document under a single key and
// joins the values in the order handed to the reducer.
func (suite *RoundTestSuite) joinJob(mapper MapperFunc[string]) *Job[string] {
	if mapper == nil {
		mapper = func(doc *Document, emit func(string, string)) error {
			emit("all", strings.TrimSpace(string(doc.Content)))
			return nil
		}
	}
	return &Job[string]{
		Name:   "join",
		Reader: NewWholeFileReader(),
		Mapper: mapper,
		Reducer: ReducerFunc[string](func(key string, values []string) (KeyValue, error) {
			return KeyValue{Key: key, Value: strings.Join(values, ",")}, nil
		}),
	}
}

func (suite *RoundTestSuite) finalStatus() RoundStatus {
	calls := suite.statusWriter.GetStatusCalls()
	suite.Require().NotEmpty(calls, "Expected a final status")
	return calls[len(calls)-1]
}

// Word counts are grouped over every document and written sorted by key
func (suite *RoundTestSuite) TestWordCount() {
	writeFiles(suite.corpus, map[string]string{
		"a.html":     "hello world",
		"b.html":     "hello there",
		"sub/c.html": "world world",
	})
	location, err := RunRound(context.Background(), suite.runner, wordCountJob(), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.dest, location.Path())
	records, err := location.Records(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal([]KeyValue{
		{Key: "hello", Value: "2"},
		{Key: "there", Value: "1"},
		{Key: "world", Value: "3"},
	}, records)
	names := listNames(suite.dest)
	suite.Require().Len(names, 2)
	suite.Require().Equal(SuccessMarker, names[0])
	suite.Require().True(strings.HasPrefix(names[1], "part-00000-"))

	status := suite.finalStatus()
	suite.Require().True(status.RoundComplete)
	suite.Require().Equal(3, status.FilesRead)
	suite.Require().Equal(3, status.DocumentsMapped)
	suite.Require().Equal(6, status.Emissions)
	suite.Require().Equal(3, status.KeysGrouped)
	suite.Require().Equal(3, status.KeysReduced)
	suite.Require().Equal(3, status.RecordsWritten)
}

// Values reach the reducer in input listing order, regardless of which
// map worker handled a document.
func (suite *RoundTestSuite) TestStableValueOrder() {
	files := map[string]string{}
	expected := []string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		files[name+".html"] = name
		expected = append(expected, name)
	}
	writeFiles(suite.corpus, files)
	location, err := RunRound(context.Background(), suite.runner, suite.joinJob(nil), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{"all": strings.Join(expected, ",")}, readRecords(location))
}

// A document whose mapper fails contributes nothing and the round continues
func (suite *RoundTestSuite) TestFailedDocumentSkipped() {
	writeFiles(suite.corpus, map[string]string{
		"a.html": "a",
		"b.html": "bad",
		"c.html": "c",
	})
	job := suite.joinJob(func(doc *Document, emit func(string, string)) error {
		content := string(doc.Content)
		emit("all", content)
		if content == "bad" {
			return errBadDocument
		}
		return nil
	})
	location, err := RunRound(context.Background(), suite.runner, job, NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{"all": "a,c"}, readRecords(location))
	status := suite.finalStatus()
	suite.Require().Equal(1, status.DocumentsFailed)
	suite.Require().Equal(2, status.DocumentsMapped)

	warnings := 0
	for _, entry := range suite.logHook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	suite.Require().Equal(1, warnings, "Expected the skipped document to be logged")
}

// A panicking mapper is treated like a failed document
func (suite *RoundTestSuite) TestMapperPanicSkipped() {
	writeFiles(suite.corpus, map[string]string{
		"a.html": "a",
		"b.html": "boom",
	})
	job := suite.joinJob(func(doc *Document, emit func(string, string)) error {
		if string(doc.Content) == "boom" {
			panic("boom")
		}
		emit("all", string(doc.Content))
		return nil
	})
	location, err := RunRound(context.Background(), suite.runner, job, NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{"all": "a"}, readRecords(location))
	suite.Require().Equal(1, suite.finalStatus().DocumentsFailed)
}

// A fatal map error aborts the round without publishing anything
func (suite *RoundTestSuite) TestFatalMapErrorAborts() {
	writeFiles(suite.corpus, map[string]string{
		"a.html": "a",
		"b.html": "bad",
	})
	job := suite.joinJob(func(doc *Document, emit func(string, string)) error {
		if string(doc.Content) == "bad" {
			return Fatal(errBadDocument)
		}
		emit("all", string(doc.Content))
		return nil
	})
	_, err := RunRound(context.Background(), suite.runner, job, NewLocalInput(suite.corpus), suite.dest)
	suite.Require().Error(err)
	suite.Require().True(errors.Is(err, errBadDocument))
	suite.Require().True(IsFatal(err))
	suite.Require().NoDirExists(suite.dest)
	suite.Require().Equal([]string{"corpus"}, listNames(suite.root), "Expected staging output to be removed")
	suite.Require().False(suite.finalStatus().RoundComplete)
}

// A reduce error aborts the round without publishing anything
func (suite *RoundTestSuite) TestReduceErrorAborts() {
	writeFiles(suite.corpus, map[string]string{"a.html": "a"})
	job := suite.joinJob(nil)
	job.Reducer = ReducerFunc[string](func(key string, values []string) (KeyValue, error) {
		return KeyValue{}, errBadDocument
	})
	_, err := RunRound(context.Background(), suite.runner, job, NewLocalInput(suite.corpus), suite.dest)
	suite.Require().True(errors.Is(err, errBadDocument))
	suite.Require().NoDirExists(suite.dest)
	suite.Require().Equal([]string{"corpus"}, listNames(suite.root))
}

// Cancelling the round part way through discards all output
func (suite *RoundTestSuite) TestCancelledRound() {
	writeFiles(suite.corpus, map[string]string{
		"a.html": "a",
		"b.html": "b",
		"c.html": "c",
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := suite.joinJob(func(doc *Document, emit func(string, string)) error {
		cancel()
		emit("all", string(doc.Content))
		return nil
	})
	_, err := RunRound(ctx, suite.runner, job, NewLocalInput(suite.corpus), suite.dest)
	suite.Require().True(errors.Is(err, context.Canceled))
	suite.Require().NoDirExists(suite.dest)
	suite.Require().Equal([]string{"corpus"}, listNames(suite.root))
}

// A round never writes over an existing location
func (suite *RoundTestSuite) TestOutputExists() {
	writeFiles(suite.corpus, map[string]string{"a.html": "a"})
	writeFiles(suite.dest, map[string]string{"keep.txt": "keep"})
	_, err := RunRound(context.Background(), suite.runner, suite.joinJob(nil), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().True(errors.Is(err, ErrOutputExists))
	suite.Require().Equal([]string{"keep.txt"}, listNames(suite.dest))
}

// A missing input location is an error, an empty one is not
func (suite *RoundTestSuite) TestEmptyAndMissingInput() {
	_, err := RunRound(context.Background(), suite.runner, suite.joinJob(nil), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().True(errors.Is(err, ErrNoInput))

	writeFiles(suite.corpus, map[string]string{".hidden": "x"})
	location, err := RunRound(context.Background(), suite.runner, suite.joinJob(nil), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	suite.Require().Empty(readRecords(location))
}

// Sharded, compressed output is read back transparently
func (suite *RoundTestSuite) TestShardedCompressedOutput() {
	suite.conf.OutputShards = 3
	suite.conf.CompressOutput = true
	suite.runner = NewRunner(&RunnerConfiguration{
		Configuration: suite.conf,
		StatusWriter:  suite.statusWriter,
		Logger:        logrus.New(),
	})
	writeFiles(suite.corpus, map[string]string{
		"a.html": "one two three four five six",
		"b.html": "one two three",
	})
	location, err := RunRound(context.Background(), suite.runner, wordCountJob(), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	names := listNames(suite.dest)
	suite.Require().Len(names, 4)
	for _, name := range names[1:] {
		suite.Require().True(strings.HasSuffix(name, ".txt.gz"), name)
	}
	suite.Require().Equal(map[string]string{
		"one": "2", "two": "2", "three": "2", "four": "1", "five": "1", "six": "1",
	}, readRecords(location))
}

// Round output can be used as the line based input of a following round
func (suite *RoundTestSuite) TestRoundOutputAsInput() {
	writeFiles(suite.corpus, map[string]string{"a.html": "x y x"})
	first, err := RunRound(context.Background(), suite.runner, wordCountJob(), NewLocalInput(suite.corpus), suite.dest)
	suite.Require().NoError(err)
	job := &Job[string]{
		Name:   "invert",
		Reader: NewLineReader(),
		Mapper: MapperFunc[string](func(doc *Document, emit func(string, string)) error {
			record := ParseRecord(string(doc.Content))
			emit(record.Value, record.Key)
			return nil
		}),
		Reducer: ReducerFunc[string](func(key string, values []string) (KeyValue, error) {
			return KeyValue{Key: key, Value: strings.Join(values, " ")}, nil
		}),
	}
	second, err := RunRound(context.Background(), suite.runner, job, first.Input(), filepath.Join(suite.root, "second"))
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{"1": "y", "2": "x"}, readRecords(second))
}

func TestRoundTestSuite(t *testing.T) {
	suite.Run(t, new(RoundTestSuite))
}
