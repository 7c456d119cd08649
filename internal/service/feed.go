package service

import "guildcorp.gg/internal/game"

// FeedSink receives market activities as they are recorded. The websocket
// hub and the JSONL feed log both implement it; a nil sink is allowed.
type FeedSink interface {
	PublishActivity(a game.MarketActivity, guildName string)
}

type multiSink []FeedSink

// MultiSink fans one activity out to several sinks, skipping nils.
func MultiSink(sinks ...FeedSink) FeedSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) PublishActivity(a game.MarketActivity, guildName string) {
	for _, s := range m {
		s.PublishActivity(a, guildName)
	}
}
