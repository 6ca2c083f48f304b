package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <destination> <json>",
		Short: "Send one JSON message to a destination",
		Example: `  topicmux publish /app/batch/42/subscribe '{"batchId":42}'
  topicmux publish --transport nats --brokers nats://localhost:4222 /topic/global '{"type":"STATUS_CHANGE","payload":{}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			destination, body := args[0], []byte(args[1])
			if !json.Valid(body) {
				return fmt.Errorf("message body is not valid JSON")
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer func() {
				_ = c.Disconnect(ctx)
				c.Wait()
			}()

			if err := c.Publish(ctx, destination, json.RawMessage(body)); err != nil {
				return err
			}
			a.logger.Info("published")
			return nil
		},
	}
}
