package feedlog

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildcorp.gg/internal/game"
)

func TestJournalRoundtrip(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, log.New(io.Discard, "", 0))

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	j.PublishActivity(game.MarketActivity{
		SessionID:  1,
		BotID:      3,
		Type:       game.ActivityDungeonComplete,
		Title:      "Ironhold Consortium clears Sunken Vault",
		GoldDelta:  1300,
		Successful: true,
		CreatedAt:  now,
	}, "Ironhold Consortium")
	j.PublishActivity(game.MarketActivity{
		SessionID: 1,
		BotID:     4,
		Type:      game.ActivityDungeonFailed,
		Title:     "Obsidian Ledger retreats",
		GoldDelta: -200,
		CreatedAt: now.Add(time.Minute),
	}, "Obsidian Ledger")
	require.NoError(t, j.Close())

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Ironhold Consortium", entries[0].GuildName)
	assert.Equal(t, game.ActivityDungeonComplete, entries[0].Activity.Type)
	assert.Equal(t, 1300, entries[0].Activity.GoldDelta)
	assert.True(t, entries[0].Activity.CreatedAt.Equal(now))

	assert.Equal(t, game.ActivityDungeonFailed, entries[1].Activity.Type)
	assert.Equal(t, -200, entries[1].Activity.GoldDelta)
	assert.False(t, entries[1].LoggedAt.IsZero())
}

func TestReadAllEmptyDir(t *testing.T) {
	entries, err := ReadAll(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
