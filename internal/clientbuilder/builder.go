package clientbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/archive"
	"github.com/park285/cheese-chess-client/internal/config"
	"github.com/park285/cheese-chess-client/internal/gameapi"
	"github.com/park285/cheese-chess-client/internal/journal"
	"github.com/park285/cheese-chess-client/internal/msgcat"
	"github.com/park285/cheese-chess-client/internal/rules"
	"github.com/park285/cheese-chess-client/internal/session"
	"github.com/park285/cheese-chess-client/internal/spectate"
)

// Deps is the wired client. Journal, Archive, Archiver and Spectate are nil
// unless configured.
type Deps struct {
	API        *gameapi.Client
	Messages   *msgcat.Catalog
	Controller *session.Controller
	Journal    *journal.Journal
	Archive    *archive.Repository
	Archiver   *archive.Archiver
	Spectate   *spectate.Server

	db *sql.DB
}

type Option func(*options)

type options struct {
	api []gameapi.Option
}

// WithAPIOptions appends options to the game api client.
func WithAPIOptions(opts ...gameapi.Option) Option {
	return func(o *options) { o.api = append(o.api, opts...) }
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts ...Option) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	apiOpts := append([]gameapi.Option{
		gameapi.WithTimeout(cfg.APITimeout),
		gameapi.WithRetry(cfg.APIRetry),
		gameapi.WithPaths(gameapi.Paths{Reset: cfg.ResetPath, Move: cfg.MovePath, AI: cfg.AIPath}),
		gameapi.WithHeaderProvider(cfg.Headers),
		gameapi.WithLogger(logger.Named("gameapi")),
	}, o.api...)
	api := gameapi.NewClient(cfg.APIBaseURL, apiOpts...)

	ctrl, err := session.New(api, session.Config{
		Difficulty:  session.Difficulty(cfg.Difficulty),
		PlayerColor: rules.Color(cfg.PlayerColor),
		AIDelay:     cfg.AIDelay,
		AITimeout:   cfg.APITimeout,
	}, session.WithLogger(logger.Named("session")), session.WithMessages(cat))
	if err != nil {
		return nil, err
	}
	d := &Deps{API: api, Messages: cat, Controller: ctrl}

	// Journal (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		j, err := journal.Open(ctx, cfg.RedisURL,
			journal.WithTTL(cfg.JournalTTL),
			journal.WithLogger(logger.Named("journal")),
		)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
		d.Journal = j
		ctrl.Subscribe(j.Observe)
	}

	// Archive (Postgres optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := archive.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.db = db
		repo := archive.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		d.Archive = repo
		d.Archiver = archive.NewArchiver(repo, logger.Named("archive"))
		ctrl.Subscribe(d.Archiver.Observe)
	}

	// Spectator feed (optional)
	if strings.TrimSpace(cfg.SpectateAddr) != "" {
		hub := spectate.NewHub(logger.Named("spectate"))
		srv, err := spectate.Listen(cfg.SpectateAddr, hub)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("listen spectate: %w", err)
		}
		d.Spectate = srv
		ctrl.Subscribe(hub.Observe)
		logger.Info("spectate_listening", zap.String("addr", srv.Addr()))
	}

	return d, nil
}

// Close stops the controller first so no new states reach the sinks, then
// drains and closes each sink.
func (d *Deps) Close() {
	if d == nil {
		return
	}
	if d.Controller != nil {
		d.Controller.Close()
	}
	if d.Spectate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = d.Spectate.Shutdown(ctx)
		cancel()
	}
	if d.Journal != nil {
		_ = d.Journal.Close()
	}
	if d.Archiver != nil {
		d.Archiver.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}
