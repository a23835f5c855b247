package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization=Bearer abc , bad, =skip,x-team = pool ")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "pool",
	}, got)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestSamplerDescription(t *testing.T) {
	require.Contains(t, Sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased")
}
