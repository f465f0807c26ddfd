package mapreduce

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/jonboulle/clockwork"
)

const (
	// S3Scheme prefixes input and output locations that live in S3
	S3Scheme = "s3://"
	// s3DownloadRetries is the number of times a failed object download is retried
	s3DownloadRetries = 5
)

// NewS3Client returns an S3 client for the configured region and endpoint
func NewS3Client(conf *Configuration) *s3.S3 {
	awsConfig := &aws.Config{Region: aws.String(conf.AWSRegion)}
	if conf.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(conf.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	return s3.New(session.Must(session.NewSession()), awsConfig)
}

// SplitS3Location splits s3://bucket/prefix into its bucket and prefix
func SplitS3Location(location string) (string, string) {
	trimmed := strings.TrimPrefix(location, S3Scheme)
	i := strings.Index(trimmed, "/")
	if i < 0 {
		return trimmed, ""
	}
	return trimmed[:i], trimmed[i+1:]
}

// S3Input lists every object below a prefix of an S3 bucket.
type S3Input struct {
	s3Client s3iface.S3API
	bucket   string
	prefix   string
	clock    clockwork.Clock // Used for exponential backoff
}

// NewS3Input returns a new instance of S3Input
//
// * s3Client - S3 client used to list and download objects
// * bucket - S3 bucket holding the input
// * prefix - Key prefix of the input objects
// * clock - Used for exponential backoff. Defaults to a real clock
func NewS3Input(s3Client s3iface.S3API, bucket string, prefix string, clock clockwork.Clock) (*S3Input, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3 input")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &S3Input{
		s3Client: s3Client,
		bucket:   bucket,
		prefix:   prefix,
		clock:    clock,
	}, nil
}

// Files lists every object under the prefix, in key order. Keys ending
// in "/" (folder placeholders) and hidden names are skipped.
func (input *S3Input) Files(ctx context.Context) ([]FileDownload, error) {
	files := []FileDownload{}
	// names are relative to the folder holding the prefix
	folder := input.prefix[:strings.LastIndex(input.prefix, "/")+1]
	var marker *string
	for {
		listKeysInput := &s3.ListObjectsInput{
			Bucket: aws.String(input.bucket),
			Prefix: aws.String(input.prefix),
			Marker: marker,
		}
		listKeysOutput, err := input.s3Client.ListObjectsWithContext(ctx, listKeysInput)
		if err != nil {
			return nil, fmt.Errorf("error fetching list of objects from S3: %w", err)
		}
		for _, object := range listKeysOutput.Contents {
			key := aws.StringValue(object.Key)
			if strings.HasSuffix(key, "/") || hiddenFile(key[strings.LastIndex(key, "/")+1:]) {
				continue
			}
			files = append(files, &S3FileDownload{
				s3Client: input.s3Client,
				bucket:   input.bucket,
				key:      key,
				name:     strings.TrimPrefix(key, folder),
				size:     aws.Int64Value(object.Size),
				clock:    input.clock,
			})
		}
		if !aws.BoolValue(listKeysOutput.IsTruncated) || len(listKeysOutput.Contents) == 0 {
			break
		}
		// NextMarker is only returned when a delimiter is set
		marker = listKeysOutput.NextMarker
		if marker == nil {
			marker = listKeysOutput.Contents[len(listKeysOutput.Contents)-1].Key
		}
	}
	return files, nil
}

// S3FileDownload represents a handle on a file in an S3 bucket
type S3FileDownload struct {
	s3Client s3iface.S3API
	bucket   string
	key      string
	name     string
	size     int64
	clock    clockwork.Clock
}

// Open gets a handle on an open data file from S3
func (fileDownload *S3FileDownload) Open() (io.ReadCloser, error) {
	input := s3.GetObjectInput{
		Bucket: aws.String(fileDownload.bucket),
		Key:    aws.String(fileDownload.key),
	}
	var resp *s3.GetObjectOutput
	err := WithRetries(fileDownload.clock, s3DownloadRetries, func() error {
		var err error
		resp, err = fileDownload.s3Client.GetObject(&input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Filename returns the key of the S3 object
func (fileDownload *S3FileDownload) Filename() string {
	return fileDownload.key
}

// Name returns the key of the S3 object relative to the input prefix
func (fileDownload *S3FileDownload) Name() string {
	return fileDownload.name
}

// Size returns the size of the S3 object in bytes
func (fileDownload *S3FileDownload) Size() int64 {
	return fileDownload.size
}
