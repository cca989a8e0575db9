package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/session"
)

const (
	EventsChannel = "chess:session:events"
	defaultTTL    = 24 * time.Hour
	queueSize     = 64
	writeTimeout  = 3 * time.Second
)

var ErrClosed = errors.New("journal: closed")

// Entry is one recorded position of a session.
type Entry struct {
	SessionID   string    `json:"session_id"`
	Version     uint64    `json:"version"`
	FEN         string    `json:"fen"`
	Turn        string    `json:"turn"`
	Status      string    `json:"status"`
	SAN         string    `json:"san,omitempty"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Difficulty  string    `json:"difficulty"`
	PlayerColor string    `json:"player_color"`
	At          time.Time `json:"at"`
}

func EntryFromState(s session.State) Entry {
	return Entry{
		SessionID:   s.SessionID,
		Version:     s.Version,
		FEN:         s.FEN,
		Turn:        string(s.Turn),
		Status:      string(s.Status),
		SAN:         s.LastMove.SAN,
		From:        s.LastMove.From,
		To:          s.LastMove.To,
		Difficulty:  string(s.Difficulty),
		PlayerColor: string(s.PlayerColor),
		At:          time.Now().UTC(),
	}
}

// Journal appends session positions to a per-session Redis list and announces
// them on EventsChannel. Observe queues work for a background writer so the
// controller never waits on Redis.
type Journal struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	lastKey string
	closed  bool
	queue   chan Entry
	done    chan struct{}
}

type Option func(*Journal)

func WithLogger(l *zap.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(j *Journal) {
		if d > 0 {
			j.ttl = d
		}
	}
}

func New(rdb *redis.Client, opts ...Option) *Journal {
	j := &Journal{
		rdb:    rdb,
		ttl:    defaultTTL,
		logger: zap.NewNop(),
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	go j.run()
	return j
}

// Open connects to redisURL and verifies the server with PING.
func Open(ctx context.Context, redisURL string, opts ...Option) (*Journal, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for journal")
	}
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

func LogKey(sessionID string) string { return "chess:session:" + sessionID + ":log" }

// Record writes e synchronously.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := LogKey(e.SessionID)
	_, err = j.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		p.Expire(ctx, key, j.ttl)
		p.Publish(ctx, EventsChannel, raw)
		return nil
	})
	return err
}

// Entries returns every recorded entry of a session, oldest first.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	raws, err := j.rdb.LRange(ctx, LogKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Observe queues a state for recording when it carries a new position.
// Pending-only transitions and repeats of the last position are skipped.
func (j *Journal) Observe(s session.State) {
	if j == nil || s.SessionID == "" || s.FEN == "" {
		return
	}
	key := s.SessionID + "|" + s.FEN
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || key == j.lastKey {
		return
	}
	j.lastKey = key
	select {
	case j.queue <- EntryFromState(s):
	default:
		j.logger.Warn("journal_queue_full", zap.String("session_id", s.SessionID))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := j.Record(ctx, e); err != nil {
			j.logger.Warn("journal_write_failed",
				zap.String("session_id", e.SessionID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close drains queued entries and closes the Redis client.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
	return j.rdb.Close()
}
