// Command wsock-echo is the plainest possible wsock demo: it upgrades
// every request on /ws and echoes messages back, optionally sending a
// periodic Ping. It logs with the standard library, mirroring the
// teacher's own plainest example rather than reaching for a logging
// dependency it doesn't need.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/coregx/wsock"
)

func main() {
	cmd := &cli.Command{
		Name:  "wsock-echo",
		Usage: "minimal WebSocket echo server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
				Value: ":8080",
			},
			&cli.DurationFlag{
				Name:  "ping-interval",
				Usage: "interval between keep-alive pings, 0 disables",
				Value: 0,
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	pingInterval := cmd.Duration("ping-interval")

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, pingInterval)
	})

	log.Printf("wsock-echo listening on %s", addr)
	log.Printf("connect with: wscat -c ws://%s/ws", addr)
	return http.ListenAndServe(addr, nil)
}

func handleConn(w http.ResponseWriter, r *http.Request, pingInterval time.Duration) {
	conn, err := wsock.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	log.Printf("client connected from %s", r.RemoteAddr)

	var stopPing chan struct{}
	if pingInterval > 0 {
		stopPing = make(chan struct{})
		go pingLoop(conn, pingInterval, stopPing)
		defer close(stopPing)
	}

	for {
		msg, err := conn.Receive()
		if err != nil {
			if wsock.IsCloseError(err) {
				log.Printf("client disconnected: %v", err)
			} else {
				log.Printf("receive error: %v", err)
			}
			return
		}

		switch msg.Kind {
		case wsock.KindText:
			log.Printf("received text: %s", msg.Text)
			if err := conn.SendText(msg.Text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		case wsock.KindBinary:
			log.Printf("received %d binary bytes", len(msg.Data))
			if err := conn.SendBinary(msg.Data); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

func pingLoop(conn *wsock.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping([]byte("heartbeat")); err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		case <-stop:
			return
		}
	}
}
