package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/core/middleware"
)

type listenFlags struct {
	batches  []int64
	runs     []int64
	progress []int64
	global   bool
	errors   bool
	overview bool
	user     bool
	topics   []string
	format   string
}

// line is one printed message.
type line struct {
	Destination    string          `json:"destination"`
	SubscriptionID string          `json:"subscriptionId"`
	Body           json.RawMessage `json:"body"`
}

// yamlLine is line as a YAML document. The body is decoded so it renders as
// a mapping instead of a byte sequence.
type yamlLine struct {
	Destination    string `yaml:"destination"`
	SubscriptionID string `yaml:"subscriptionId"`
	Body           any    `yaml:"body"`
}

// newPrinter returns a function writing one message to w in format.
func newPrinter(w io.Writer, format string) (func(line) error, error) {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		return func(l line) error { return enc.Encode(l) }, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return func(l line) error {
			var body any
			if err := json.Unmarshal(l.Body, &body); err != nil {
				body = string(l.Body)
			}
			return enc.Encode(yamlLine{Destination: l.Destination, SubscriptionID: l.SubscriptionID, Body: body})
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q: want json or yaml", format)
	}
}

func newListenCmd(a *app) *cobra.Command {
	var f listenFlags

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to topics and print every message",
		Example: `  topicmux listen --batch 42 --global
  topicmux listen --run 7 --progress 7 --errors --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listen(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	flags := cmd.Flags()
	flags.Int64SliceVar(&f.batches, "batch", nil, "batch id to follow (repeatable)")
	flags.Int64SliceVar(&f.runs, "run", nil, "run id to follow (repeatable)")
	flags.Int64SliceVar(&f.progress, "progress", nil, "run id whose progress stream to follow (repeatable)")
	flags.BoolVar(&f.global, "global", false, "follow the global topic")
	flags.BoolVar(&f.errors, "errors", false, "follow the error broadcast topic")
	flags.BoolVar(&f.overview, "overview", false, "follow the all-batches overview topic")
	flags.BoolVar(&f.user, "user-queue", false, "follow the user's private queue")
	flags.StringSliceVar(&f.topics, "topic", nil, "raw destination to follow (repeatable)")
	flags.StringVar(&f.format, "format", "json", "output format: json or yaml")
	return cmd
}

func (f listenFlags) channels() []core.Channel {
	var out []core.Channel
	for _, id := range f.batches {
		out = append(out, core.BatchChannel(id))
	}
	for _, id := range f.runs {
		out = append(out, core.RunChannel(id))
	}
	for _, id := range f.progress {
		out = append(out, core.RunProgressChannel(id))
	}
	if f.global {
		out = append(out, core.GlobalChannel())
	}
	if f.errors {
		out = append(out, core.ErrorsChannel())
	}
	if f.overview {
		out = append(out, core.BatchesOverviewChannel())
	}
	if f.user {
		out = append(out, core.UserQueueChannel())
	}
	for _, dest := range f.topics {
		out = append(out, core.DestinationChannel(dest))
	}
	return out
}

// listen subscribes to every requested channel and prints messages until ctx
// ends or the session is lost.
func (a *app) listen(ctx context.Context, w io.Writer, f listenFlags) error {
	channels := f.channels()
	if len(channels) == 0 {
		return errors.New("nothing to listen to: pass --batch, --run, --progress, --global, --errors, --overview, --user-queue or --topic")
	}
	write, err := newPrinter(w, f.format)
	if err != nil {
		return err
	}

	c, err := a.newClient()
	if err != nil {
		return err
	}

	lost := make(chan error, 1)
	c.On(core.EventDisconnect, func(ev core.Event) error {
		if ev.Err != nil {
			select {
			case lost <- ev.Err:
			default:
			}
		}
		return nil
	})

	counters := middleware.NewCounters()
	c.Use(middleware.Metrics(counters))

	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Wait()
	defer a.summarize(counters)

	var mu sync.Mutex
	emit := func(mc core.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return write(line{
			Destination:    mc.Destination(),
			SubscriptionID: mc.SubscriptionID(),
			Body:           json.RawMessage(mc.Raw()),
		})
	}

	for _, ch := range channels {
		id, err := c.Subscribe(ch, emit)
		if err != nil {
			_ = c.Disconnect(context.Background())
			return fmt.Errorf("subscribe to %s: %w", ch.Destination, err)
		}
		a.logger.Info("listening", zap.String("destination", ch.Destination), zap.String("subscription_id", id))
	}

	select {
	case <-ctx.Done():
		return c.Disconnect(context.Background())
	case err := <-lost:
		return fmt.Errorf("connection lost: %w", err)
	}
}

// summarize logs per-destination totals once listening stops.
func (a *app) summarize(counters *middleware.Counters) {
	for _, st := range counters.Snapshot() {
		a.logger.Info("destination summary",
			zap.String("destination", st.Destination),
			zap.String("kind", string(st.Kind)),
			zap.Int("messages", st.Messages),
			zap.Int("failures", st.Failures),
			zap.Duration("max", st.Max),
		)
	}
}
