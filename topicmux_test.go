package topicmux_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/topicmux"
	"github.com/miladsoleymani/topicmux/plugins/memory"
)

func TestNew_DoesNotConnect(t *testing.T) {
	c := topicmux.New("http://localhost:8080")
	assert.False(t, c.IsConnected())

	_, err := c.SubscribeGlobal(func(topicmux.Context) error { return nil })
	assert.ErrorIs(t, err, topicmux.ErrNotConnected)
}

func TestNew_TransportOverride(t *testing.T) {
	c := topicmux.New("http://localhost:8080", topicmux.WithTransport(memory.NewBroker()))
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	require.NoError(t, c.Disconnect(context.Background()))
	c.Wait()
}
