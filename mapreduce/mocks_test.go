package mapreduce

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/mock"
)

// MockStatusWriter records every status it is handed
type MockStatusWriter struct {
	mock.Mock
	lock     sync.Mutex
	statuses []RoundStatus
}

func (writer *MockStatusWriter) WriteStatus(status RoundStatus) {
	writer.Called(status)
	writer.lock.Lock()
	defer writer.lock.Unlock()
	writer.statuses = append(writer.statuses, status)
}

// GetStatusCalls returns a copy of the statuses written so far
func (writer *MockStatusWriter) GetStatusCalls() []RoundStatus {
	writer.lock.Lock()
	defer writer.lock.Unlock()
	return append([]RoundStatus{}, writer.statuses...)
}

// MockS3API mocks the parts of the S3 API used for input and publishing
type MockS3API struct {
	s3iface.S3API
	mock.Mock
}

func (api *MockS3API) ListObjectsWithContext(ctx aws.Context, input *s3.ListObjectsInput, opts ...request.Option) (*s3.ListObjectsOutput, error) {
	args := api.Called(aws.StringValue(input.Marker))
	output, _ := args.Get(0).(*s3.ListObjectsOutput)
	return output, args.Error(1)
}

func (api *MockS3API) GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	args := api.Called(aws.StringValue(input.Key))
	output, _ := args.Get(0).(*s3.GetObjectOutput)
	return output, args.Error(1)
}

func (api *MockS3API) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	data, _ := ioutil.ReadAll(input.Body)
	args := api.Called(aws.StringValue(input.Key), string(data))
	output, _ := args.Get(0).(*s3.PutObjectOutput)
	return output, args.Error(1)
}

func tick() {
	time.Sleep(time.Millisecond)
}

// writeFiles creates each file below root with the given content
func writeFiles(root string, files map[string]string) {
	for name, content := range files {
		filename := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			panic(err)
		}
		if err := ioutil.WriteFile(filename, []byte(content), 0644); err != nil {
			panic(err)
		}
	}
}

// readRecords loads all records of a location keyed by record key
func readRecords(location Location) map[string]string {
	records, err := location.Records(context.Background())
	if err != nil {
		panic(err)
	}
	result := map[string]string{}
	for _, record := range records {
		result[record.Key] = record.Value
	}
	return result
}

// listNames returns the sorted names of the entries of a folder
func listNames(folder string) []string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil
	}
	names := []string{}
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// wordCountJob counts whitespace separated words over whole files
func wordCountJob() *Job[int] {
	return &Job[int]{
		Name:   "wordcount",
		Reader: NewWholeFileReader(),
		Mapper: MapperFunc[int](func(doc *Document, emit func(string, int)) error {
			for _, word := range strings.Fields(string(doc.Content)) {
				emit(word, 1)
			}
			return nil
		}),
		Reducer: ReducerFunc[int](func(key string, values []int) (KeyValue, error) {
			total := 0
			for _, value := range values {
				total += value
			}
			return KeyValue{Key: key, Value: strconv.Itoa(total)}, nil
		}),
	}
}

// MockOutputFileWriter records the files it is asked to write
type MockOutputFileWriter struct {
	mock.Mock
}

func (writer *MockOutputFileWriter) WriteOutputFile(filepath string, data []byte) error {
	args := writer.Called(filepath, data)
	return args.Error(0)
}
