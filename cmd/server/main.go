package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omochice/keychat/internal/chat"
	"github.com/omochice/keychat/internal/console"
	"github.com/omochice/keychat/internal/logging"
	"github.com/omochice/keychat/internal/server"
	"github.com/omochice/keychat/internal/transport/tcp"
)

func main() {
	cmd := &cli.Command{
		Name:  "keychat-server",
		Usage: "Relay chat lines between clients that know the shared key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Usage: "IP address to listen on (prompted when omitted)"},
			&cli.StringFlag{Name: "port", Usage: "Port to listen on for both TCP and WebSocket (prompted when omitted)"},
			&cli.StringFlag{Name: "key", Usage: "Shared key clients must present (prompted when omitted)"},
			&cli.IntFlag{Name: "read-buffer", Value: tcp.DefaultReadBufferSize, Usage: "Per-read buffer size of raw TCP connections"},
			&cli.IntFlag{Name: "queue", Value: chat.DefaultQueueSize, Usage: "Outbound queue length per connection"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "log-json", Usage: "Write JSON log lines"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := logging.New(os.Stdout, cmd.Bool("debug"), cmd.Bool("log-json"))
	prompt := console.New(os.Stdin, os.Stdout)

	address, err := flagOrLine(cmd, prompt, "address", "Enter server IP address: ")
	if err != nil {
		return err
	}
	port, err := flagOrLine(cmd, prompt, "port", "Enter server port: ")
	if err != nil {
		return err
	}
	endpoint, err := console.ParseEndpoint(address, port)
	if err != nil {
		return err
	}
	key := cmd.String("key")
	if !cmd.IsSet("key") {
		if key, err = prompt.Secret("Enter server key: "); err != nil {
			return err
		}
	}

	cfg := server.DefaultConfig()
	cfg.Address = endpoint
	cfg.Key = key
	cfg.ReadBufferSize = int(cmd.Int("read-buffer"))
	cfg.QueueSize = int(cmd.Int("queue"))

	srv := server.New(cfg, log)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Debug().Msg("received shutdown signal")
		srv.Stop()
		return <-errChan
	}
}

func flagOrLine(cmd *cli.Command, prompt *console.Prompter, name, label string) (string, error) {
	if cmd.IsSet(name) {
		return cmd.String(name), nil
	}
	return prompt.Line(label)
}
