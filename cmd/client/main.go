package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/omochice/keychat/internal/chat"
	"github.com/omochice/keychat/internal/client"
	"github.com/omochice/keychat/internal/console"
	"github.com/omochice/keychat/internal/logging"
	"github.com/omochice/keychat/pkg/protocol"
)

// exitKeyword ends the session, compared case-insensitively.
const exitKeyword = "exit"

func main() {
	cmd := &cli.Command{
		Name:  "keychat-client",
		Usage: "Connect to a keychat server and exchange lines",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Usage: "Server IP address (prompted when omitted)"},
			&cli.StringFlag{Name: "port", Usage: "Server port (prompted when omitted)"},
			&cli.StringFlag{Name: "username", Usage: "Username for chat (prompted when omitted)"},
			&cli.StringFlag{Name: "key", Usage: "Shared server key (prompted when omitted)"},
			&cli.BoolFlag{Name: "websocket", Usage: "Connect over WebSocket instead of raw TCP"},
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
	in := newInput(console.New(os.Stdin, os.Stdout), os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Flags answer every attempt; a failure with nothing left to re-prompt ends the program.
	interactive := !(cmd.IsSet("address") && cmd.IsSet("port") && cmd.IsSet("username") && cmd.IsSet("key"))

	for {
		cfg, err := ask(cmd, in)
		if err != nil {
			return err
		}

		c := client.New(cfg, log)
		if err := c.Connect(ctx); err != nil {
			if errors.Is(err, chat.ErrUnauthorized) {
				log.Info().Msg(protocol.FormatSystem("Unauthorized"))
			} else {
				log.Error().Err(err).Msg("failed to connect to server")
			}
			if !interactive || ctx.Err() != nil {
				return err
			}
			continue
		}

		log.Info().Msg(protocol.FormatSystem("You are now connected"))
		exited := chatLoop(ctx, c, in, log)
		c.Disconnect()
		log.Info().Msg(protocol.FormatSystem("You are now disconnected"))
		if exited {
			return nil
		}
	}
}

// ask collects connection parameters, re-prompting for an invalid address or port.
func ask(cmd *cli.Command, in *input) (client.Config, error) {
	var cfg client.Config
	for {
		address, err := flagOr(cmd, "address", func() (string, error) { return in.line("Enter server IP address: ") })
		if err != nil {
			return cfg, err
		}
		port, err := flagOr(cmd, "port", func() (string, error) { return in.line("Enter server port: ") })
		if err != nil {
			return cfg, err
		}
		endpoint, err := console.ParseEndpoint(address, port)
		if err == nil {
			cfg.Address = endpoint
			break
		}
		if cmd.IsSet("address") && cmd.IsSet("port") {
			return cfg, err
		}
		fmt.Fprintln(os.Stdout, console.InvalidEndpointMessage)
	}

	var err error
	if cfg.Username, err = flagOr(cmd, "username", func() (string, error) { return in.line("Enter username: ") }); err != nil {
		return cfg, err
	}
	if cfg.Key, err = flagOr(cmd, "key", func() (string, error) { return in.secret("Enter server key: ") }); err != nil {
		return cfg, err
	}
	cfg.WebSocket = cmd.Bool("websocket")
	return cfg, nil
}

func flagOr(cmd *cli.Command, name string, prompt func() (string, error)) (string, error) {
	if cmd.IsSet(name) {
		return cmd.String(name), nil
	}
	return prompt()
}

// chatLoop prints received frames and sends typed lines until the user
// exits (true) or the server ends the session (false).
func chatLoop(ctx context.Context, c *client.Client, in *input, log zerolog.Logger) bool {
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return false
			}
			log.Info().Msg(msg)
		case line := <-in.next():
			in.consumed()
			if line.err != nil {
				return true
			}
			text := strings.TrimSpace(line.text)
			if strings.EqualFold(text, exitKeyword) {
				return true
			}
			if text == "" {
				continue
			}
			if err := c.Send(ctx, line.text); err != nil {
				log.Error().Err(err).Msg("failed to send message")
				continue
			}
			log.Info().Msg(protocol.FormatOwn(c.Username(), line.text))
		case <-ctx.Done():
			return true
		}
	}
}
