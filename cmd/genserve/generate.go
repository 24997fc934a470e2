package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/genserve/internal/api"
	"github.com/samcharles93/genserve/internal/logger"
	"github.com/samcharles93/genserve/internal/modelhost"
)

func generateCmd(s *settings) *cli.Command {
	flags := []cli.Flag{
		configFlag(s),
		&cli.StringFlag{
			Name:        "text",
			Aliases:     []string{"t"},
			Usage:       "input text",
			Required:    true,
			Destination: &s.text,
		},
	}
	flags = append(flags, modelFlags(s)...)
	flags = append(flags, loggingFlags(s)...)

	return &cli.Command{
		Name:   "generate",
		Usage:  "Run one generation and print the JSON response",
		Flags:  flags,
		Before: prepare(s),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			host, err := modelhost.Load(ctx, s.hostConfig(), log)
			if err != nil {
				return err
			}
			defer host.Close()

			out, err := host.Generate(ctx, s.text)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.Root().Writer)
			enc.SetEscapeHTML(false)
			return enc.Encode(api.GenerateResponse{GeneratedText: out})
		},
	}
}
