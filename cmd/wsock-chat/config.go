package main

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// flags defines wsock-chat's CLI flags, each resolvable from (in order of
// priority) the command line, an environment variable, or the TOML config
// file at configFilePath — the same layering tzrikka-timpani's cmd/timpani
// applies to its own flags via cli.NewValueSourceChain.
func flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address",
			Value: ":8080",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSOCK_CHAT_ADDR"),
				toml.TOML("chat.addr", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSOCK_CHAT_PRETTY_LOG"),
				toml.TOML("chat.pretty_log", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "max-message-bytes",
			Usage: "maximum reassembled message size, in bytes",
			Value: 1 << 20,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSOCK_CHAT_MAX_MESSAGE_BYTES"),
				toml.TOML("chat.max_message_bytes", configFilePath),
			),
		},
	}
}
