package nats

import (
	"testing"

	"github.com/miladsoleymani/topicmux/transport"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		destination string
		want        string
	}{
		{"/topic/batch/42", "topic.batch.42"},
		{"/topic/global", "topic.global"},
		{"/app/batch/42/subscribe", "app.batch.42.subscribe"},
		{"/topic/batch/*", "topic.batch.*"},
		{"/topic/#", "topic.>"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Subject(tt.destination); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.destination, got, tt.want)
		}
	}
}

func TestSanitizeStreamName(t *testing.T) {
	if got := sanitizeStreamName("topic.batch.>"); got != "topic-batch--" {
		t.Errorf("sanitizeStreamName = %q", got)
	}
}

func TestOptsFromConfig(t *testing.T) {
	o := defaults()
	for _, fn := range optsFromConfig(transport.Config{
		Group: "workers",
		Extra: map[string]any{"name": "cli", "max_deliver": 9, "replicas": 3},
	}) {
		fn(&o)
	}
	if !o.jetStream || o.group != "workers" {
		t.Errorf("jetstream = %v group = %q", o.jetStream, o.group)
	}
	if o.name != "cli" || o.maxDeliver != 9 || o.replicas != 3 {
		t.Errorf("unexpected options: %+v", o)
	}

	o = defaults()
	for _, fn := range optsFromConfig(transport.Config{}) {
		fn(&o)
	}
	if o.jetStream {
		t.Error("jetstream enabled without configuration")
	}
}

func TestRegistered(t *testing.T) {
	tr, err := transport.Create("nats", transport.Config{Addresses: []string{"nats://127.0.0.1:4222"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := tr.(*Transport).urls[0]; got != "nats://127.0.0.1:4222" {
		t.Errorf("url = %q", got)
	}
}
