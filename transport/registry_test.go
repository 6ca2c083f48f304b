package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/internal/mock"
	"github.com/miladsoleymani/topicmux/transport"
)

func TestRegistry(t *testing.T) {
	var got transport.Config
	transport.Register("test-mock", func(cfg transport.Config) (core.Transport, error) {
		got = cfg
		return mock.NewTransport(), nil
	})

	tr, err := transport.Create("test-mock", transport.Config{Group: "g", Extra: map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.NotNil(t, tr)
	assert.Equal(t, "g", got.Group)

	v, ok := got.String("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	_, ok = got.String("missing")
	assert.False(t, ok)

	assert.Contains(t, transport.Names(), "test-mock")
}

func TestCreateUnknown(t *testing.T) {
	_, err := transport.Create("carrier-pigeon", transport.Config{})
	assert.ErrorIs(t, err, transport.ErrUnknownTransport)
	assert.ErrorContains(t, err, `"carrier-pigeon"`)
}
