package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingImage       = errors.New("please upload a CT scan image first")
	ErrNotConfigured      = errors.New("inference platform credentials are not configured")
	ErrUnauthorized       = errors.New("inference platform rejected the credentials")
	ErrServiceUnavailable = errors.New("inference platform unavailable")
	ErrEmptyResponse      = errors.New("inference platform returned an empty response")
)

// PlatformError is a non-2xx answer from a remote platform.
type PlatformError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: platform error (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap maps the status code onto the package sentinels so callers can
// use errors.Is without caring which backend produced the error.
func (e *PlatformError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500:
		return ErrServiceUnavailable
	}
	return nil
}

// AnalysisRequest is one image plus the optional clinical note injected as
// context.
type AnalysisRequest struct {
	ImageRef string
	Context  string
}

// AnalysisResult is the platform's free-text answer for one image.
type AnalysisResult struct {
	Findings  string
	Diagnosis string
	SOP       string

	// ContextUsed is false when the note could not be passed to the model.
	ContextUsed bool
}

// Empty reports whether the platform produced no usable text at all.
func (r AnalysisResult) Empty() bool {
	return strings.TrimSpace(r.Findings) == "" &&
		strings.TrimSpace(r.Diagnosis) == "" &&
		strings.TrimSpace(r.SOP) == ""
}

// Analyzer produces findings, diagnosis and SOP text for a CT image.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
}

// Transcriber turns a voice note reference into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

// Uploader pushes a local file to remote storage and returns a reference
// the platform can read.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
