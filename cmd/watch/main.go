// watch tails the live market feed of one session over the websocket,
// printing FEED and TICKER messages as they arrive. Handy for eyeballing bot
// behavior against a running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"guildcorp.gg/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		session = flag.String("session", "", "session public id (required)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags)
	if strings.TrimSpace(*session) == "" {
		logger.Fatal("missing -session")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SessionID:       *session,
		ClientName:      "watch",
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s week=%d", w.SessionID, w.GameWeek)

		case protocol.TypeFeed:
			var f protocol.FeedMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				continue
			}
			delta := ""
			if f.GoldDelta != 0 {
				delta = fmt.Sprintf(" (%+dg)", f.GoldDelta)
			}
			logger.Printf("FEED [%s] %s%s", f.Activity, f.Title, delta)

		case protocol.TypeTicker:
			var t protocol.TickerMsg
			if err := json.Unmarshal(msg, &t); err != nil {
				continue
			}
			parts := make([]string, 0, len(t.Entries))
			for _, e := range t.Entries {
				parts = append(parts, fmt.Sprintf("%s %.0f (%s)", e.GuildName, e.SharePrice, e.Rank))
			}
			logger.Printf("TICKER %s", strings.Join(parts, " | "))
		}
	}
}
