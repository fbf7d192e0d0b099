package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrServiceUnavailable},
		{http.StatusBadGateway, ErrServiceUnavailable},
	}
	for _, tt := range tests {
		err := error(&PlatformError{Op: "analyze", StatusCode: tt.status})
		assert.ErrorIs(t, err, tt.want, tt.status)
	}

	err := error(&PlatformError{Op: "analyze", StatusCode: http.StatusBadRequest, Body: "bad column"})
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
	assert.Contains(t, err.Error(), "bad column")
}

func TestAnalysisResult_Empty(t *testing.T) {
	assert.True(t, AnalysisResult{}.Empty())
	assert.True(t, AnalysisResult{Findings: "  \n"}.Empty())
	assert.False(t, AnalysisResult{SOP: "Refer"}.Empty())
}
