package core

import (
	"testing"
	"time"
)

func TestChannelFor(t *testing.T) {
	tests := []struct {
		name        string
		ch          Channel
		destination string
		announce    string
		field       string
	}{
		{"batch", BatchChannel(42), "/topic/batch/42", "/app/batch/42/subscribe", "batchId"},
		{"run", RunChannel(7), "/topic/run/7", "/app/run/7/subscribe", "runId"},
		{"global", GlobalChannel(), "/topic/global", "/app/global/subscribe", ""},
		{"run progress", RunProgressChannel(7), "/topic/progress/run/7", "", ""},
		{"status", StatusChannel(3), "/topic/status/3", "", ""},
		{"entity errors", EntityErrorsChannel(3), "/topic/error/3", "", ""},
		{"errors", ErrorsChannel(), "/topic/errors", "", ""},
		{"batches overview", BatchesOverviewChannel(), "/topic/batches/all", "", ""},
		{"user queue", UserQueueChannel(), "/user/queue/messages", "", ""},
		{"custom", DestinationChannel("/queue/x"), "/queue/x", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ch.Destination != tt.destination {
				t.Errorf("Destination = %q, want %q", tt.ch.Destination, tt.destination)
			}
			if tt.ch.Announce != tt.announce {
				t.Errorf("Announce = %q, want %q", tt.ch.Announce, tt.announce)
			}
			if tt.field != "" {
				if _, ok := tt.ch.Fields[tt.field]; !ok {
					t.Errorf("Fields missing %q: %v", tt.field, tt.ch.Fields)
				}
			}
		})
	}
}

func TestChannelAnnouncement(t *testing.T) {
	at := time.Date(2024, 5, 6, 9, 8, 7, 5_000_000, time.FixedZone("CET", 3600))
	body := BatchChannel(42).announcement(at)

	if got := body["batchId"]; got != int64(42) {
		t.Errorf("batchId = %v (%T), want 42", got, got)
	}
	if got := body["timestamp"]; got != "2024-05-06T08:08:07.005Z" {
		t.Errorf("timestamp = %v, want UTC with milliseconds", got)
	}
	if len(body) != 2 {
		t.Errorf("unexpected fields: %v", body)
	}
}
