// Package queue distributes index and PageRank jobs to workers through SQS.
package queue

import (
	"errors"
	"fmt"
)

// Job kinds
const (
	KindIndex    = "index"
	KindPageRank = "pagerank"
)

// ErrInvalidRequest is returned for job requests that can not be run.
var ErrInvalidRequest = errors.New("invalid job request")

// A JobRequest describes one pipeline run. It is the body of a queue message.
type JobRequest struct {
	JobID      string `json:"jobId"`                // Assigned on submit when empty
	Kind       string `json:"kind"`                 // index or pagerank
	Input      string `json:"input"`                // Corpus folder or s3://bucket/prefix
	Output     string `json:"output"`               // Local folder receiving the result
	Iterations int    `json:"iterations,omitempty"` // PageRank calculation rounds
	Publish    string `json:"publish,omitempty"`    // Key prefix in the output bucket, if the result should be published
}

// Validate checks that the request names a known kind and its locations.
func (request *JobRequest) Validate() error {
	switch request.Kind {
	case KindIndex, KindPageRank:
	default:
		return fmt.Errorf("%w: unknown kind '%v'", ErrInvalidRequest, request.Kind)
	}
	if request.Input == "" || request.Output == "" {
		return fmt.Errorf("%w: input and output are required", ErrInvalidRequest)
	}
	if request.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative", ErrInvalidRequest)
	}
	return nil
}
