package mapreduce

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"runtime"
	"strconv"
)

const (
	// DefaultMaxSplitSize is the largest amount of input data grouped into a single map task.
	DefaultMaxSplitSize = 128 * 1024 * 1024
	// DefaultIterations is the number of PageRank calculation rounds when none are configured.
	DefaultIterations = 10
	// DefaultIndexDelimiter separates document URLs in inverted index records.
	DefaultIndexDelimiter = "|"
	// ConfigurationFileVariable names the environment variable holding the path to a JSON configuration file.
	ConfigurationFileVariable = "MRSEARCH_CONFIG"
)

// Configuration controls how rounds are executed and where data lives.
// Most fields have sensible defaults; see DefaultConfiguration.
type Configuration struct {
	MapPoolSize    int    `json:"mapPoolSize"`    // Number of concurrent map workers
	ReducePoolSize int    `json:"reducePoolSize"` // Number of concurrent reduce workers
	OutputShards   int    `json:"outputShards"`   // Number of part files written per round
	MaxSplitSize   int64  `json:"maxSplitSize"`   // Upper bound of input bytes per map task
	CompressOutput bool   `json:"compressOutput"` // Gzip part files
	TempDir        string `json:"tempDir"`        // Parent folder for intermediate round output

	AWSRegion    string `json:"awsRegion"`    // Region used for S3 and SQS
	S3Endpoint   string `json:"s3Endpoint"`   // Optional custom S3 endpoint
	OutputBucket string `json:"outputBucket"` // If set, finished outputs are published to this bucket
	QueueURL     string `json:"queueUrl"`     // SQS queue of job requests
	SQSEndpoint  string `json:"sqsEndpoint"`  // Optional custom SQS endpoint

	DatabasePath   string `json:"databasePath"`   // Search database file
	IndexDelimiter string `json:"indexDelimiter"` // Separator for URLs in inverted index records
	Iterations     int    `json:"iterations"`     // Default PageRank calculation rounds

	LogLevel  string `json:"logLevel"`  // debug, info, warn or error
	LogFormat string `json:"logFormat"` // text or json
}

// DefaultConfiguration returns a Configuration populated with default values.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		MapPoolSize:    runtime.NumCPU(),
		ReducePoolSize: runtime.NumCPU(),
		OutputShards:   1,
		MaxSplitSize:   DefaultMaxSplitSize,
		TempDir:        os.TempDir(),
		DatabasePath:   "mrsearch.db",
		IndexDelimiter: DefaultIndexDelimiter,
		Iterations:     DefaultIterations,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadConfiguration fills conf from the JSON file named by MRSEARCH_CONFIG (if any)
// and then applies environment variable overrides.
func LoadConfiguration(conf *Configuration) error {
	if filename := os.Getenv(ConfigurationFileVariable); filename != "" {
		data, err := ioutil.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("reading configuration file '%v': %w", filename, err)
		}
		if err := json.Unmarshal(data, conf); err != nil {
			return fmt.Errorf("parsing configuration file '%v': %w", filename, err)
		}
	}
	overrideString(&conf.AWSRegion, "AWS_REGION")
	overrideString(&conf.S3Endpoint, "S3_ENDPOINT")
	overrideString(&conf.OutputBucket, "OUTPUT_BUCKET")
	overrideString(&conf.QueueURL, "QUEUE_URL")
	overrideString(&conf.SQSEndpoint, "SQS_ENDPOINT")
	overrideString(&conf.TempDir, "MRSEARCH_TEMP_DIR")
	overrideString(&conf.DatabasePath, "MRSEARCH_DB")
	overrideString(&conf.LogLevel, "MRSEARCH_LOG_LEVEL")
	overrideString(&conf.LogFormat, "MRSEARCH_LOG_FORMAT")
	if value := os.Getenv("MRSEARCH_MAP_POOL_SIZE"); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("MRSEARCH_MAP_POOL_SIZE: %w", err)
		}
		conf.MapPoolSize = size
	}
	return conf.Validate()
}

func overrideString(field *string, variable string) {
	if value := os.Getenv(variable); value != "" {
		*field = value
	}
}

// Validate checks that the configuration can be used to run rounds.
func (conf *Configuration) Validate() error {
	if conf.MapPoolSize < 1 {
		return errors.New("mapPoolSize must be at least 1")
	}
	if conf.ReducePoolSize < 1 {
		return errors.New("reducePoolSize must be at least 1")
	}
	if conf.OutputShards < 1 {
		return errors.New("outputShards must be at least 1")
	}
	if conf.MaxSplitSize < 1 {
		return errors.New("maxSplitSize must be positive")
	}
	if len([]rune(conf.IndexDelimiter)) != 1 {
		return fmt.Errorf("indexDelimiter must be a single character, got '%v'", conf.IndexDelimiter)
	}
	if conf.Iterations < 0 {
		return errors.New("iterations must not be negative")
	}
	return nil
}
