package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	roundtrip := func(msg any) any {
		t.Helper()
		raw, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return v
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	feedSchema := compile("feed.schema.json")
	tickerSchema := compile("ticker.schema.json")
	errorSchema := compile("error.schema.json")

	validate(helloSchema, roundtrip(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		SessionID:       "9f0c2a7e-0000-4000-8000-000000000001",
		ClientName:      "web",
	}))

	validate(welcomeSchema, roundtrip(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "9f0c2a7e-0000-4000-8000-000000000001",
		GameWeek:        3,
		ServerTime:      "2026-03-01T12:00:00Z",
	}))

	activity := game.MarketActivity{
		ID:         42,
		Type:       game.ActivityDungeonBid,
		GameDay:    17,
		Title:      "Ironhold Consortium bids on Sunken Vault",
		Body:       "A bold move in the C-rank market.",
		GoldDelta:  -1200,
		Successful: true,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	validate(feedSchema, roundtrip(protocol.FeedFromActivity(activity, "Ironhold Consortium")))

	validate(tickerSchema, roundtrip(protocol.TickerMsg{
		Type:            protocol.TypeTicker,
		ProtocolVersion: protocol.Version,
		Entries: []protocol.TickerEntry{
			{GuildName: "Player Guild", Bot: false, SharePrice: 104.5, Rank: "C"},
			{GuildName: "Ironhold Consortium", Bot: true, SharePrice: 230, Rank: "B"},
		},
	}))

	validate(errorSchema, roundtrip(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrStateConflict,
		Message:         "bidding already closed",
	}))
}
