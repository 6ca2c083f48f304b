package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestTransports(t *testing.T) {
	out, err := run(t, context.Background(), "transports")
	require.NoError(t, err)
	for _, name := range []string{"kafka", "memory", "mqtt", "nats", "rabbitmq", "stomp"} {
		assert.Contains(t, out, name)
	}
}

func TestPublish(t *testing.T) {
	_, err := run(t, context.Background(), "--transport", "memory", "--quiet", "publish", "/app/ping", `{"n":1}`)
	assert.NoError(t, err)
}

func TestPublish_InvalidJSON(t *testing.T) {
	_, err := run(t, context.Background(), "--transport", "memory", "--quiet", "publish", "/app/ping", `{`)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestPublish_UnknownTransport(t *testing.T) {
	_, err := run(t, context.Background(), "--transport", "pigeon", "--quiet", "publish", "/app/ping", `{}`)
	assert.ErrorContains(t, err, "unknown transport")
}

func TestListen_RequiresChannels(t *testing.T) {
	_, err := run(t, context.Background(), "--transport", "memory", "--quiet", "listen")
	assert.ErrorContains(t, err, "nothing to listen to")
}

func TestListen_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := run(t, ctx, "--transport", "memory", "--quiet", "listen", "--batch", "42", "--global")
	assert.NoError(t, err)
}

func TestListenFlags_Channels(t *testing.T) {
	f := listenFlags{batches: []int64{1, 2}, runs: []int64{3}, global: true, topics: []string{"/queue/x"}}
	chs := f.channels()
	require.Len(t, chs, 5)
	assert.Equal(t, "/topic/batch/1", chs[0].Destination)
	assert.Equal(t, "/topic/batch/2", chs[1].Destination)
	assert.Equal(t, "/topic/run/3", chs[2].Destination)
	assert.Equal(t, "/topic/global", chs[3].Destination)
	assert.Equal(t, "/queue/x", chs[4].Destination)
}

func TestListen_UnknownFormat(t *testing.T) {
	_, err := run(t, context.Background(), "--transport", "memory", "--quiet", "listen", "--global", "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestPrinter(t *testing.T) {
	l := line{Destination: "/topic/run/3", SubscriptionID: "sub-1", Body: json.RawMessage(`{"type":"STATUS_CHANGE","payload":{"status":"DONE"}}`)}

	var js bytes.Buffer
	write, err := newPrinter(&js, "json")
	require.NoError(t, err)
	require.NoError(t, write(l))
	assert.JSONEq(t, `{"destination":"/topic/run/3","subscriptionId":"sub-1","body":{"type":"STATUS_CHANGE","payload":{"status":"DONE"}}}`, js.String())

	var ys bytes.Buffer
	write, err = newPrinter(&ys, "yaml")
	require.NoError(t, err)
	require.NoError(t, write(l))
	require.NoError(t, write(line{Destination: "/topic/errors", SubscriptionID: "sub-2", Body: json.RawMessage(`oops`)}))
	out := ys.String()
	assert.Contains(t, out, "destination: /topic/run/3\n")
	assert.Contains(t, out, "    status: DONE\n")
	assert.Contains(t, out, "body: oops\n")
	assert.Contains(t, out, "---\n")
}
