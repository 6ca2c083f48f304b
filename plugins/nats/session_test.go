package nats

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"

	"github.com/miladsoleymani/topicmux/core"
)

func runServer(t *testing.T, jetStream bool) *server.Server {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	if jetStream {
		opts.JetStream = true
		opts.StoreDir = t.TempDir()
	}
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func connectSession(t *testing.T, tr *Transport, url string) core.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := tr.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func waitClosed(t *testing.T, s core.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestSession_SubscribePublishDisconnect(t *testing.T) {
	srv := runServer(t, false)
	s := connectSession(t, New(nil), srv.ClientURL())

	if s.Info()["server_id"] == "" {
		t.Errorf("Info() missing server_id: %v", s.Info())
	}

	got := make(chan core.Message, 1)
	sub, err := s.Subscribe(context.Background(), "/topic/batch/42", func(_ context.Context, m core.Message) error {
		got <- m
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.ID() == "" || sub.Destination() != "/topic/batch/42" {
		t.Fatalf("unexpected subscription: id=%q destination=%q", sub.ID(), sub.Destination())
	}

	body := []byte(`{"type":"PROGRESS_UPDATE","payload":{"progress":50}}`)
	if err := s.Publish(context.Background(), "/topic/batch/42", core.NewMessage("/topic/batch/42", body, nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Destination() != "/topic/batch/42" || string(m.Body()) != string(body) {
			t.Errorf("received %q on %q", m.Body(), m.Destination())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	waitClosed(t, s)
	if err := s.Err(); err != nil {
		t.Errorf("Err() after requested disconnect = %v, want nil", err)
	}
	if _, err := s.Subscribe(context.Background(), "/topic/global", func(context.Context, core.Message) error { return nil }); !errors.Is(err, core.ErrSessionClosed) {
		t.Errorf("Subscribe after disconnect = %v, want ErrSessionClosed", err)
	}
}

func TestSession_ServerShutdownEndsSession(t *testing.T) {
	srv := runServer(t, false)
	s := connectSession(t, New(nil), srv.ClientURL())

	srv.Shutdown()
	waitClosed(t, s)
	if s.Err() == nil {
		t.Error("Err() = nil after the server went away")
	}
	if err := s.Publish(context.Background(), "/topic/global", core.NewMessage("/topic/global", []byte(`{}`), nil)); !errors.Is(err, core.ErrSessionClosed) {
		t.Errorf("Publish after loss = %v, want ErrSessionClosed", err)
	}
}

func TestSession_ConnectRefused(t *testing.T) {
	srv := runServer(t, false)
	url := srv.ClientURL()
	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(nil).Connect(ctx, url); err == nil {
		t.Fatal("Connect to a stopped server succeeded")
	}
}

func TestSession_JetStreamRedeliversOnError(t *testing.T) {
	srv := runServer(t, true)
	s := connectSession(t, New(nil, WithJetStream("")), srv.ClientURL())
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })

	var calls atomic.Int32
	done := make(chan struct{})
	_, err := s.Subscribe(context.Background(), "/topic/run/7", func(context.Context, core.Message) error {
		if calls.Add(1) == 1 {
			return errors.New("not yet")
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Publish(context.Background(), "/topic/run/7", core.NewMessage("/topic/run/7", []byte(`{}`), nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("message not redelivered, calls = %d", calls.Load())
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestClient_OverNATS(t *testing.T) {
	srv := runServer(t, false)
	c := core.New(srv.ClientURL(), core.WithTransport(New(nil)), core.WithEndpointPath(""))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	lost := make(chan error, 1)
	c.On(core.EventDisconnect, func(ev core.Event) error {
		lost <- ev.Err
		return nil
	})

	got := make(chan core.Envelope, 1)
	if _, err := c.SubscribeBatch(42, func(mc core.Context) error {
		env, err := mc.Envelope()
		if err != nil {
			return err
		}
		got <- env
		return nil
	}); err != nil {
		t.Fatalf("SubscribeBatch: %v", err)
	}
	if err := c.Publish(context.Background(), "/topic/batch/42", core.Envelope{Type: core.TypeStatusChange, Payload: map[string]any{"status": "RUNNING"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case env := <-got:
		if env.Type != core.TypeStatusChange || env.Payload["status"] != "RUNNING" {
			t.Errorf("unexpected envelope: %+v", env)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("envelope not delivered")
	}

	srv.Shutdown()
	select {
	case err := <-lost:
		if err == nil {
			t.Error("disconnect event after server loss carried no cause")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect event after server loss")
	}
	c.Wait()
	if c.IsConnected() || len(c.Subscriptions()) != 0 {
		t.Errorf("client still connected=%v subs=%v", c.IsConnected(), c.Subscriptions())
	}
}
