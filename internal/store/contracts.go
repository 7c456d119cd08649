package store

import (
	"database/sql"
	"errors"
	"fmt"

	"guildcorp.gg/internal/game"
)

const contractCols = `id, dungeon_id, guild_id, bot_owned, bid_amount,
	submitted_at, status, awarded_at, access_expires_at`

func (t *Tx) InsertContract(c *game.Contract) error {
	res, err := t.tx.Exec(
		`INSERT INTO contracts(dungeon_id, guild_id, bot_owned, bid_amount,
			submitted_at, status, awarded_at, access_expires_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		c.DungeonID, c.GuildID, b2i(c.BotOwned), c.BidAmount,
		dbTime(c.SubmittedAt), string(c.Status), dbTime(c.AwardedAt), dbTime(c.AccessExpiresAt),
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (t *Tx) ContractByID(id int64) (*game.Contract, error) {
	return scanContract(t.tx.QueryRow(`SELECT `+contractCols+` FROM contracts WHERE id = ?`, id))
}

// PendingContract returns the guild's open bid on a dungeon, if any. Player
// and bot guild ids come from separate tables, so bot ownership is part of
// the key.
func (t *Tx) PendingContract(dungeonID, guildID int64, botOwned bool) (*game.Contract, error) {
	c, err := scanContract(t.tx.QueryRow(
		`SELECT `+contractCols+` FROM contracts WHERE dungeon_id = ? AND guild_id = ? AND bot_owned = ? AND status = ?`,
		dungeonID, guildID, b2i(botOwned), string(game.ContractPending)))
	if errors.Is(err, game.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// ContractsByDungeon lists a dungeon's contracts, optionally by status.
func (t *Tx) ContractsByDungeon(dungeonID int64, status game.ContractStatus) ([]*game.Contract, error) {
	q := `SELECT ` + contractCols + ` FROM contracts WHERE dungeon_id = ?`
	args := []any{dungeonID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id`

	rows, err := t.tx.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Contract
	for rows.Next() {
		c, err := scanContractRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountPendingContracts reports the live competition level on a dungeon.
func (t *Tx) CountPendingContracts(dungeonID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(
		`SELECT COUNT(*) FROM contracts WHERE dungeon_id = ? AND status = ?`,
		dungeonID, string(game.ContractPending)).Scan(&n)
	return n, err
}

// CountAwardedByGuild counts live access grants, used against the rank
// contract capacity.
func (t *Tx) CountAwardedByGuild(guildID int64, botOwned bool) (int, error) {
	var n int
	err := t.tx.QueryRow(
		`SELECT COUNT(*) FROM contracts c
		 JOIN dungeons d ON d.id = c.dungeon_id
		 WHERE c.guild_id = ? AND c.bot_owned = ? AND c.status = ? AND d.status = ?`,
		guildID, b2i(botOwned), string(game.ContractAwarded), string(game.DungeonActive)).Scan(&n)
	return n, err
}

func (t *Tx) UpdateContract(c *game.Contract) error {
	_, err := t.tx.Exec(
		`UPDATE contracts SET bid_amount = ?, submitted_at = ?, status = ?,
			awarded_at = ?, access_expires_at = ?
		 WHERE id = ?`,
		c.BidAmount, dbTime(c.SubmittedAt), string(c.Status),
		dbTime(c.AwardedAt), dbTime(c.AccessExpiresAt), c.ID,
	)
	return err
}

func scanContract(row *sql.Row) (*game.Contract, error) {
	var c game.Contract
	var botOwned int
	var submitted, status, awarded, expires string
	err := row.Scan(&c.ID, &c.DungeonID, &c.GuildID, &botOwned, &c.BidAmount,
		&submitted, &status, &awarded, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contract", game.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	fillContract(&c, botOwned, submitted, status, awarded, expires)
	return &c, nil
}

func scanContractRows(rows *sql.Rows) (*game.Contract, error) {
	var c game.Contract
	var botOwned int
	var submitted, status, awarded, expires string
	err := rows.Scan(&c.ID, &c.DungeonID, &c.GuildID, &botOwned, &c.BidAmount,
		&submitted, &status, &awarded, &expires)
	if err != nil {
		return nil, err
	}
	fillContract(&c, botOwned, submitted, status, awarded, expires)
	return &c, nil
}

func fillContract(c *game.Contract, botOwned int, submitted, status, awarded, expires string) {
	c.BotOwned = botOwned != 0
	c.SubmittedAt = parseTime(submitted)
	c.Status = game.ContractStatus(status)
	c.AwardedAt = parseTime(awarded)
	c.AccessExpiresAt = parseTime(expires)
}
