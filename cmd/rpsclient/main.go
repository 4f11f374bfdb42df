package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/types"
)

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "rpsclient",
		Usage: "play rock-paper-scissors against the party server from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080/ws",
				Usage:   "server websocket endpoint",
				Sources: cli.EnvVars("RPS_URL"),
			},
			&cli.StringFlag{
				Name:     "name",
				Usage:    "display name",
				Required: true,
				Sources:  cli.EnvVars("RPS_NAME"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "host",
				Usage: "create a room and print its code",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					hello := types.HostNewGame{UserName: cmd.String("name"), UserType: engine.RoleHost}
					return play(ctx, cmd.String("url"), hello)
				},
			},
			{
				Name:      "join",
				Usage:     "join an existing room",
				ArgsUsage: "<room code>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					code := cmd.Args().First()
					if code == "" {
						return cli.Exit("room code is required", 2)
					}
					hello := types.UserLogin{UserName: cmd.String("name"), UserType: engine.RolePlayer, RoomCode: code}
					return play(ctx, cmd.String("url"), hello)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
