package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LocoMH/wwtbam-server/client"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe as a display role and print every delivered message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.OutOrStdout())
		},
	}

	addClientFlags(cmd, "tvscreen")
	return cmd
}

func runWatch(out io.Writer) error {
	dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, serverURL, role, clientToken())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return c.Close()
	})
	g.Go(func() error {
		return printReplies(ctx, c, out)
	})
	return g.Wait()
}

func printReplies(ctx context.Context, c *client.Client, out io.Writer) error {
	for {
		reply, err := c.Receive(time.Time{})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		if reply.IsError() {
			fmt.Fprintf(out, "error: %s\n", reply.Error)
			continue
		}
		fmt.Fprintf(out, "%s\n", reply.Message)
	}
}
