package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/model"
	"github.com/membench/membench/internal/registry"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unknown component",
			err:  &registry.UnknownComponentError{Kind: registry.KindModel, Name: "m2"},
			want: false,
		},
		{
			name: "construction failure",
			err:  &registry.ConstructionError{Kind: registry.KindModel, Name: "m1", Err: errors.New("bad endpoint")},
			want: false,
		},
		{
			name: "wrapped unknown component",
			err:  fmt.Errorf("load: %w", registry.ErrUnknownComponent),
			want: false,
		},
		{
			name: "empty task set",
			err:  fmt.Errorf("load tasks: %w", benchmark.ErrNoTasks),
			want: false,
		},
		{
			name: "invalid metrics",
			err:  fmt.Errorf("task t1: %w", benchmark.ErrInvalidMetrics),
			want: false,
		},
		{
			name: "cancellation",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "panic",
			err:  &panicError{value: "index out of range"},
			want: false,
		},
		{
			name: "retryable provider error",
			err:  &model.ProviderError{Provider: "ollama", Type: model.ErrorTypeNetwork},
			want: true,
		},
		{
			name: "wrapped retryable provider error",
			err:  fmt.Errorf("task t1: %w", &model.ProviderError{Provider: "ollama", Type: model.ErrorTypeTimeout}),
			want: true,
		},
		{
			name: "non-retryable provider error",
			err:  &model.ProviderError{Provider: "openrouter", Type: model.ErrorTypeAuth},
			want: false,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: true,
		},
		{
			name: "unclassified error defaults to transient",
			err:  errors.New("something went wrong"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestPanicErrorMessage(t *testing.T) {
	err := &panicError{value: "nil map write"}
	assert.Equal(t, "job panicked: nil map write", err.Error())
	assert.False(t, err.IsRetryable())
}
