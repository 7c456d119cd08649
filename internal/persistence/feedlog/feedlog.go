// Package feedlog journals the market activity feed to disk as
// hour-rotated, zstd-compressed JSONL so a session's market history
// survives restarts and can be replayed offline.
package feedlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"guildcorp.gg/internal/game"
)

// Entry is one journaled feed line.
type Entry struct {
	GuildName string              `json:"guild_name"`
	Activity  game.MarketActivity `json:"activity"`
	LoggedAt  time.Time           `json:"logged_at"`
}

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *jsonlZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Journal persists every published activity. It satisfies the feed sink
// contract of the service layer; write failures are logged and never block
// the game loop.
type Journal struct {
	w   *jsonlZstdWriter
	log *log.Logger
}

func NewJournal(dataDir string, logger *log.Logger) *Journal {
	return &Journal{
		w:   newJSONLZstdWriter(filepath.Join(dataDir, "feed"), "feed"),
		log: logger,
	}
}

func (j *Journal) PublishActivity(a game.MarketActivity, guildName string) {
	e := Entry{GuildName: guildName, Activity: a, LoggedAt: time.Now().UTC()}
	if err := j.w.Write(e); err != nil {
		j.log.Printf("feed journal: %v", err)
	}
}

func (j *Journal) Close() error { return j.w.Close() }

// ReadAll decodes every journaled entry under dataDir, oldest file first.
// Intended for replay tooling and tests, not the hot path.
func ReadAll(dataDir string) ([]Entry, error) {
	dir := filepath.Join(dataDir, "feed")
	names, err := filepath.Glob(filepath.Join(dir, "feed-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, name := range names {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		sc := bufio.NewScanner(dec)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			var e Entry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				dec.Close()
				_ = f.Close()
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			out = append(out, e)
		}
		scanErr := sc.Err()
		dec.Close()
		_ = f.Close()
		if scanErr != nil {
			return nil, scanErr
		}
	}
	return out, nil
}
