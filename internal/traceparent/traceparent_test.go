package traceparent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndEncodeRoundTrip(t *testing.T) {
	tp := New()
	encoded := tp.Encode()

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	require.Equal(t, tp.TraceIDHex(), parsed.TraceIDHex())
	require.Equal(t, tp.Sampled, parsed.Sampled)
}

func TestParse_RejectsMalformed(t *testing.T) {
	_, err := Parse("not-a-traceparent")
	require.Error(t, err)
}

func TestParse_KnownVector(t *testing.T) {
	tp, err := Parse("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	require.NoError(t, err)
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", tp.TraceIDHex())
	require.True(t, tp.Sampled)
}
