package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LocoMH/wwtbam-server/client"
)

func newSendCommand() *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "send <json>",
		Short: "Send a message as the controller",
		Long: `Send a JSON message through the relay. Without --roles it is
broadcast to every role.

  wwtbam-server send --token ctrl123 --roles host,tvscreen '["setCurrentLevel",5]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, roles, args[0])
		},
	}

	addClientFlags(cmd, "controller")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Target roles, comma separated (default: all)")
	return cmd
}

func runSend(cmd *cobra.Command, roles []string, payload string) error {
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("invalid JSON message: %s", payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := client.Dial(ctx, serverURL, role, clientToken())
	if err != nil {
		return err
	}
	defer c.Close()

	sendErr := c.Send(roles, json.RawMessage(payload))

	// The relay stays silent on success; give it a moment to report a
	// rejected handshake or message.
	reply, err := c.Receive(time.Now().Add(200 * time.Millisecond))
	if err == nil && reply.IsError() {
		return fmt.Errorf("relay rejected message: %s", reply.Error)
	}
	if sendErr != nil {
		return sendErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Message sent")
	return nil
}
