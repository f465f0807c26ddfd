package mapreduce

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// Tests for RunChain
type ChainTestSuite struct {
	suite.Suite
	root   string
	corpus string
	dest   string
	runner *Runner
	calls  int
	init   Stage
	calc   Stage
}

func (suite *ChainTestSuite) SetupTest() {
	suite.root = suite.T().TempDir()
	suite.corpus = filepath.Join(suite.root, "corpus")
	suite.dest = filepath.Join(suite.root, "output")
	conf := DefaultConfiguration()
	conf.TempDir = filepath.Join(suite.root, "tmp")
	suite.Require().NoError(os.MkdirAll(conf.TempDir, 0755))
	writeFiles(suite.corpus, map[string]string{
		"a.html": "a",
		"b.html": "b",
	})
	suite.runner = NewRunner(&RunnerConfiguration{Configuration: conf, Logger: logrus.New()})
	suite.calls = 0

	// init seeds every document with a counter of zero
	initJob := &Job[string]{
		Name:   "seed",
		Reader: NewWholeFileReader(),
		Mapper: MapperFunc[string](func(doc *Document, emit func(string, string)) error {
			emit(string(doc.Content), "0")
			return nil
		}),
		Reducer: ReducerFunc[string](func(key string, values []string) (KeyValue, error) {
			return KeyValue{Key: key, Value: values[0]}, nil
		}),
	}
	// calc increments every counter
	calcJob := &Job[int]{
		Name:   "increment",
		Reader: NewLineReader(),
		Mapper: MapperFunc[int](func(doc *Document, emit func(string, int)) error {
			record := ParseRecord(string(doc.Content))
			count, err := strconv.Atoi(record.Value)
			if err != nil {
				return Fatal(err)
			}
			emit(record.Key, count+1)
			return nil
		}),
		Reducer: ReducerFunc[int](func(key string, values []int) (KeyValue, error) {
			return KeyValue{Key: key, Value: strconv.Itoa(values[0])}, nil
		}),
	}
	suite.init = func(ctx context.Context, input DocumentSource, dest string) (Location, error) {
		return RunRound(ctx, suite.runner, initJob, input, dest)
	}
	suite.calc = func(ctx context.Context, input DocumentSource, dest string) (Location, error) {
		suite.calls++
		return RunRound(ctx, suite.runner, calcJob, input, dest)
	}
}

func (suite *ChainTestSuite) tempEntries() []string {
	return listNames(suite.runner.Configuration().TempDir)
}

// Each calculation round reads the output of the round before it
func (suite *ChainTestSuite) TestChainRounds() {
	location, err := RunChain(context.Background(), suite.runner, NewLocalInput(suite.corpus), suite.init, suite.calc, 3, suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.dest, location.Path())
	suite.Require().Equal(3, suite.calls)
	suite.Require().Equal(map[string]string{"a": "3", "b": "3"}, readRecords(location))
	suite.Require().Empty(suite.tempEntries(), "Expected intermediate output to be removed")
}

// Zero calculation rounds publish the initialization output
func (suite *ChainTestSuite) TestZeroRounds() {
	location, err := RunChain(context.Background(), suite.runner, NewLocalInput(suite.corpus), suite.init, suite.calc, 0, suite.dest)
	suite.Require().NoError(err)
	suite.Require().Equal(0, suite.calls)
	suite.Require().Equal(map[string]string{"a": "0", "b": "0"}, readRecords(location))
	suite.Require().FileExists(filepath.Join(suite.dest, SuccessMarker))
	suite.Require().Empty(suite.tempEntries())
}

// A failing round stops the chain and leaves nothing behind
func (suite *ChainTestSuite) TestFailedRound() {
	failure := errors.New("round failed")
	calc := suite.calc
	suite.calc = func(ctx context.Context, input DocumentSource, dest string) (Location, error) {
		if suite.calls == 1 {
			return Location{}, failure
		}
		return calc(ctx, input, dest)
	}
	_, err := RunChain(context.Background(), suite.runner, NewLocalInput(suite.corpus), suite.init, suite.calc, 3, suite.dest)
	suite.Require().True(errors.Is(err, failure))
	suite.Require().NoDirExists(suite.dest)
	suite.Require().Empty(suite.tempEntries())
}

// Invalid arguments are rejected before any round runs
func (suite *ChainTestSuite) TestInvalidArguments() {
	_, err := RunChain(context.Background(), suite.runner, NewLocalInput(suite.corpus), suite.init, suite.calc, -1, suite.dest)
	suite.Require().Error(err)

	writeFiles(suite.dest, map[string]string{"keep.txt": "keep"})
	_, err = RunChain(context.Background(), suite.runner, NewLocalInput(suite.corpus), suite.init, suite.calc, 1, suite.dest)
	suite.Require().True(errors.Is(err, ErrOutputExists))
	suite.Require().Equal(0, suite.calls)
}

func TestChainTestSuite(t *testing.T) {
	suite.Run(t, new(ChainTestSuite))
}
