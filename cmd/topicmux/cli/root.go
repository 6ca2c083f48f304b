// Package cli implements the topicmux command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/core/middleware"
	"github.com/miladsoleymani/topicmux/internal/config"
	"github.com/miladsoleymani/topicmux/internal/logging"
	"github.com/miladsoleymani/topicmux/transport"

	// Import plugins to trigger self-registration via init()
	_ "github.com/miladsoleymani/topicmux/plugins/kafka"
	_ "github.com/miladsoleymani/topicmux/plugins/memory"
	_ "github.com/miladsoleymani/topicmux/plugins/mqtt"
	_ "github.com/miladsoleymani/topicmux/plugins/nats"
	_ "github.com/miladsoleymani/topicmux/plugins/rabbitmq"
	_ "github.com/miladsoleymani/topicmux/plugins/stomp"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRootCmd builds the command tree with a fresh configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "topicmux",
		Short: "Follow and publish batch and run notifications over a pub/sub broker",
		Long: `topicmux connects to a notification server (STOMP over websocket by
default), subscribes to batch, run and global topics, and prints every
message it receives as one JSON line.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (YAML)")
	flags.String("server", "", "server address, e.g. http://localhost:8080")
	flags.String("transport", "", "transport name (see 'topicmux transports')")
	flags.String("endpoint-path", "", "path appended to the server address")
	flags.StringSlice("brokers", nil, "broker addresses for kafka, nats, rabbitmq and mqtt")
	flags.String("group", "", "consumer group")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("quiet", false, "only log warnings and errors")

	for key, flag := range map[string]string{
		"server_address": "server",
		"transport":      "transport",
		"endpoint_path":  "endpoint-path",
		"brokers":        "brokers",
		"group":          "group",
		"log_level":      "log-level",
		"quiet":          "quiet",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", flag, err))
		}
	}

	root.AddCommand(
		newListenCmd(a),
		newPublishCmd(a),
		newTransportsCmd(),
	)
	return root
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Quiet)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newClient builds a client for the configured transport.
func (a *app) newClient() (*core.Client, error) {
	t, err := transport.Create(a.cfg.Transport, a.cfg.TransportConfig())
	if err != nil {
		return nil, err
	}
	return core.New(a.cfg.ServerAddress,
		core.WithTransport(t),
		core.WithLogger(a.logger),
		core.WithEndpointPath(a.cfg.EndpointPath),
		core.WithMiddleware(middleware.Recovery(a.logger), middleware.Logging(a.logger)),
	), nil
}
