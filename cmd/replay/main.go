// replay reads a server's compressed feed journal and prints the market
// history, optionally filtered by activity type. Useful for auditing what
// the bot economy did while nobody was watching.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/persistence/feedlog"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		typeName = flag.String("type", "", "only show one activity type (e.g. DUNGEON_BID)")
		summary  = flag.Bool("summary", false, "print per-guild totals instead of the event stream")
	)
	flag.Parse()

	entries, err := feedlog.ReadAll(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read feed journal:", err)
		os.Exit(1)
	}

	filter := game.ActivityType(strings.ToUpper(strings.TrimSpace(*typeName)))

	if *summary {
		printSummary(entries, filter)
		return
	}
	for _, e := range entries {
		if filter != "" && e.Activity.Type != filter {
			continue
		}
		delta := ""
		if e.Activity.GoldDelta != 0 {
			delta = fmt.Sprintf(" (%+dg)", e.Activity.GoldDelta)
		}
		fmt.Printf("%s  %-16s  %s%s\n",
			e.Activity.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Activity.Type, e.Activity.Title, delta)
	}
}

func printSummary(entries []feedlog.Entry, filter game.ActivityType) {
	type totals struct {
		events int
		gold   int
	}
	byGuild := map[string]*totals{}
	var order []string
	for _, e := range entries {
		if filter != "" && e.Activity.Type != filter {
			continue
		}
		t, ok := byGuild[e.GuildName]
		if !ok {
			t = &totals{}
			byGuild[e.GuildName] = t
			order = append(order, e.GuildName)
		}
		t.events++
		t.gold += e.Activity.GoldDelta
	}
	for _, name := range order {
		t := byGuild[name]
		fmt.Printf("%-24s  events=%-4d gold=%+d\n", name, t.events, t.gold)
	}
}
