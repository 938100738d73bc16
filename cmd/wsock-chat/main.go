// Command wsock-chat is a JSON chat server built on wsock and the
// internal broadcast hub. Unlike wsock-echo, it demonstrates the wider
// ambient stack a real consumer of wsock would carry: structured logging
// with zerolog, CLI flags layered with a TOML config file via
// urfave/cli-altsrc, and per-connection correlation IDs from shortuuid —
// none of which the wsock core package itself depends on.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coregx/wsock"
	"github.com/coregx/wsock/internal/hub"
)

// Message is the JSON envelope broadcast between chat clients.
type Message struct {
	Type      string    `json:"type"` // "join", "message", "leave"
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	configPath := altsrc.StringSourcer("./wsock-chat.toml")

	cmd := &cli.Command{
		Name:  "wsock-chat",
		Usage: "broadcast chat server built on wsock",
		Flags: flags(configPath),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			configureLogging(cmd.Bool("pretty-log"))
			return run(ctx, cmd)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("wsock-chat exited")
	}
}

func configureLogging(pretty bool) {
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	maxMessageBytes := int(cmd.Int("max-message-bytes"))

	h := hub.New()
	go h.Run()
	defer h.Close()

	go logHubEvents(h)

	upgradeOpts := &wsock.UpgradeOptions{MaxMessageSize: maxMessageBytes}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, h, upgradeOpts)
	})

	log.Info().Str("addr", addr).Msg("wsock-chat listening")
	return http.ListenAndServe(addr, nil)
}

func logHubEvents(h *hub.Hub) {
	for evt := range h.Events() {
		switch evt.Kind {
		case hub.EventJoined:
			log.Info().Str("client_id", evt.ID).Msg("client joined")
		case hub.EventLeft:
			log.Info().Str("client_id", evt.ID).Msg("client left")
		case hub.EventWriteFailed:
			log.Warn().Str("client_id", evt.ID).Err(evt.Err).Msg("broadcast write failed")
		}
	}
}

func handleConn(w http.ResponseWriter, r *http.Request, h *hub.Hub, opts *wsock.UpgradeOptions) {
	conn, err := wsock.Upgrade(w, r, opts)
	if err != nil {
		log.Error().Err(err).Msg("upgrade failed")
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = "Anonymous"
	}

	l := log.With().Str("username", username).Str("remote_addr", r.RemoteAddr).Logger()
	l.Info().Msg("user connected")

	h.Register(conn)
	defer func() {
		h.Unregister(conn)
		l.Info().Msg("user disconnected")
	}()

	if err := h.BroadcastJSON(Message{
		Type:      "join",
		Username:  username,
		Text:      username + " joined the chat",
		Timestamp: time.Now(),
	}); err != nil {
		l.Warn().Err(err).Msg("broadcast join failed")
	}

	for {
		var msg Message
		if err := conn.ReceiveJSON(&msg); err != nil {
			if wsock.IsCloseError(err) {
				_ = h.BroadcastJSON(Message{
					Type:      "leave",
					Username:  username,
					Text:      username + " left the chat",
					Timestamp: time.Now(),
				})
			} else {
				l.Warn().Err(err).Msg("receive failed")
			}
			return
		}

		msg.Type = "message"
		msg.Username = username
		msg.Timestamp = time.Now()

		l.Debug().Str("text", msg.Text).Msg("message received")

		if err := h.BroadcastJSON(msg); err != nil {
			l.Warn().Err(err).Msg("broadcast failed")
		}
	}
}
