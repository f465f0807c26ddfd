package mapreduce

import (
	"bytes"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/jonboulle/clockwork"
)

// s3UploadRetries is the number of times a failed upload is retried
const s3UploadRetries = 3

// S3OutputFileWriter implements the OutputFileWriter interface.
// Writes files to an S3 bucket
type S3OutputFileWriter struct {
	s3BucketName string
	s3Connection s3iface.S3API
	clock        clockwork.Clock // Used for exponential backoff
}

// NewS3OutputFileWriter returns a new instance of S3OutputFileWriter
//
// * s3Connection - S3 client
// * s3BucketName - S3 output bucket name
// * clock - Used for exponential backoff. Defaults to a real clock
func NewS3OutputFileWriter(s3Connection s3iface.S3API, s3BucketName string, clock clockwork.Clock) *S3OutputFileWriter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	fileWriter := new(S3OutputFileWriter)
	fileWriter.s3Connection = s3Connection
	fileWriter.s3BucketName = s3BucketName
	fileWriter.clock = clock
	return fileWriter
}

// WriteOutputFile uploads the specified file to the S3 bucket
func (fileWriter *S3OutputFileWriter) WriteOutputFile(filepath string, data []byte) error {
	return WithRetries(fileWriter.clock, s3UploadRetries, func() error {
		input := s3.PutObjectInput{
			Bucket: aws.String(fileWriter.s3BucketName),
			Key:    aws.String(strings.TrimPrefix(filepath, "/")),
			Body:   bytes.NewReader(data),
		}
		_, err := fileWriter.s3Connection.PutObject(&input)
		return err
	})
}
