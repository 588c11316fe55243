package otlpdiag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seanchatmangpt/cleanroom/internal/config"
)

func TestParseEndpoint_BareHostDefaultsToGRPC(t *testing.T) {
	u, err := parseEndpoint(config.OtelConfig{Endpoint: "localhost:4317"})
	require.NoError(t, err)
	require.Equal(t, "grpc", u.Scheme)
	require.Equal(t, "localhost:4317", u.Host)
}

func TestParseEndpoint_HTTPGetsTracesPathAppended(t *testing.T) {
	u, err := parseEndpoint(config.OtelConfig{Endpoint: "http://localhost:4318"})
	require.NoError(t, err)
	require.Equal(t, "/v1/traces", u.Path)
}

func TestParseEndpoint_MissingEndpointIsConfigError(t *testing.T) {
	_, err := parseEndpoint(config.OtelConfig{})
	require.Error(t, err)
}

func TestIsLoopback(t *testing.T) {
	u, _ := parseEndpoint(config.OtelConfig{Endpoint: "localhost:4317"})
	require.True(t, isLoopback(u))

	u2, _ := parseEndpoint(config.OtelConfig{Endpoint: "http://example.com:4318"})
	require.False(t, isLoopback(u2))
}
