package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/jonboulle/clockwork"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/wolfgangmeyers/mrsearch/mapreduce"
)

const (
	// ReceiveWaitSeconds is the long polling time of a receive
	ReceiveWaitSeconds = 20
	// ReceiveErrorPause is the time a worker waits after a failed receive or job
	ReceiveErrorPause = time.Second
)

// A Task runs a single job request.
type Task func(ctx context.Context, request *JobRequest) error

// Retryable reports whether a job that failed with err may succeed when run
// again. Invalid requests, missing inputs and occupied outputs fail the same
// way on every attempt.
func Retryable(err error) bool {
	return !errors.Is(err, ErrInvalidRequest) &&
		!errors.Is(err, mapreduce.ErrNoInput) &&
		!errors.Is(err, mapreduce.ErrOutputExists)
}

// NewSQSClient returns an SQS client for the configured region and endpoint
func NewSQSClient(conf *mapreduce.Configuration) *sqs.SQS {
	sqsConfig := &aws.Config{
		Region: aws.String(conf.AWSRegion),
	}
	if conf.SQSEndpoint != "" {
		sqsConfig.Endpoint = aws.String(conf.SQSEndpoint)
	}
	return sqs.New(session.Must(session.NewSession()), sqsConfig)
}

// SQSQueue submits job requests to an SQS queue and pulls them off for
// processing. A message is deleted once its job completes and made visible
// again right away when the job fails.
type SQSQueue struct {
	sqsClient sqsiface.SQSAPI
	queueURL  string
	clock     clockwork.Clock
	logger    logrus.FieldLogger
}

// NewSQSQueue returns a new instance of SQSQueue
//
// * sqsClient - SQS client
// * queueURL - URL of the job queue
// * clock - Used to pause after failed receives. Defaults to a real clock
// * logger - Log events
func NewSQSQueue(sqsClient sqsiface.SQSAPI, queueURL string, clock clockwork.Clock, logger logrus.FieldLogger) (*SQSQueue, error) {
	if queueURL == "" {
		return nil, errors.New("queue url is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	queue := new(SQSQueue)
	queue.sqsClient = sqsClient
	queue.queueURL = queueURL
	queue.clock = clock
	queue.logger = logger.WithField("component", "sqs_queue")
	return queue, nil
}

// Submit validates request, assigns a job id if it has none and sends it
// to the queue. It returns the job id.
func (queue *SQSQueue) Submit(ctx context.Context, request *JobRequest) (string, error) {
	if err := request.Validate(); err != nil {
		return "", err
	}
	if request.JobID == "" {
		request.JobID = uuid.Must(uuid.NewV4()).String()
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	_, err = queue.sqsClient.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queue.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("sending job '%v': %w", request.JobID, err)
	}
	queue.logger.WithFields(logrus.Fields{
		"jobId": request.JobID,
		"kind":  request.Kind,
	}).Info("Job submitted")
	return request.JobID, nil
}

// Handle receives at most one job request and runs task on it. It reports
// whether a message was received. Messages that do not hold a valid
// request are deleted without running task, as are messages whose job
// failed with an error that is not Retryable.
func (queue *SQSQueue) Handle(ctx context.Context, task Task) (bool, error) {
	receiveMessageOutput, err := queue.sqsClient.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queue.queueURL),
		MaxNumberOfMessages: aws.Int64(1),
		WaitTimeSeconds:     aws.Int64(ReceiveWaitSeconds),
	})
	if err != nil {
		return false, fmt.Errorf("receiving message from sqs: %w", err)
	}
	if len(receiveMessageOutput.Messages) == 0 {
		return false, nil
	}
	message := receiveMessageOutput.Messages[0]
	receiptHandle := aws.StringValue(message.ReceiptHandle)
	request := new(JobRequest)
	if err := json.Unmarshal([]byte(aws.StringValue(message.Body)), request); err == nil {
		err = request.Validate()
	} else {
		err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		queue.logger.Errorf("Discarding message '%v': '%v'", aws.StringValue(message.Body), err.Error())
		queue.delete(receiptHandle)
		return true, err
	}

	logger := queue.logger.WithFields(logrus.Fields{
		"jobId": request.JobID,
		"kind":  request.Kind,
	})
	logger.Info("Running job")
	if err := task(ctx, request); err != nil {
		if Retryable(err) {
			logger.Errorf("Job failed: '%v'", err.Error())
			queue.release(receiptHandle)
		} else {
			logger.Errorf("Job failed permanently, discarding: '%v'", err.Error())
			queue.delete(receiptHandle)
		}
		return true, fmt.Errorf("job '%v': %w", request.JobID, err)
	}
	// If the code reaches this point, the task completed normally
	queue.delete(receiptHandle)
	logger.Info("Job completed")
	return true, nil
}

// Run handles job requests until ctx is cancelled. After any failure the
// worker pauses for ReceiveErrorPause before the next receive.
func (queue *SQSQueue) Run(ctx context.Context, task Task) {
	queue.logger.Info("Worker starting up")
	for ctx.Err() == nil {
		received, err := queue.Handle(ctx, task)
		if err == nil || ctx.Err() != nil {
			continue
		}
		if !received {
			queue.logger.Errorf("Error receiving job: '%v'", err.Error())
		}
		queue.clock.Sleep(ReceiveErrorPause)
	}
	queue.logger.Info("Worker shutting down")
}

func (queue *SQSQueue) delete(receiptHandle string) {
	deleteMessageInput := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queue.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}
	if _, err := queue.sqsClient.DeleteMessage(deleteMessageInput); err != nil {
		queue.logger.Errorf("Error deleting message: receipt handle='%v', err='%v'", receiptHandle, err.Error())
	}
}

func (queue *SQSQueue) release(receiptHandle string) {
	changeVisibilityInput := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queue.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: aws.Int64(0),
	}
	if _, err := queue.sqsClient.ChangeMessageVisibility(changeVisibilityInput); err != nil {
		queue.logger.Errorf("Error releasing message: receipt handle='%v', err='%v'", receiptHandle, err.Error())
	}
}
