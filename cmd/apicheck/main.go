// Command apicheck probes the game service endpoints and, optionally, a
// spectator feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-client/internal/config"
	"github.com/park285/cheese-chess-client/internal/gameapi"
	"github.com/park285/cheese-chess-client/internal/rules"
	"github.com/park285/cheese-chess-client/internal/spectate"
)

func main() {
	play := flag.Bool("play", false, "also submit e4 and request one AI move")
	watch := flag.String("watch", "", "spectator feed URL, e.g. ws://127.0.0.1:8090/spectate")
	watchFor := flag.Duration("watch-for", 10*time.Second, "how long to print spectator frames")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	client := gameapi.NewClient(cfg.APIBaseURL,
		gameapi.WithHeaderProvider(cfg.Headers),
		gameapi.WithTimeout(cfg.APITimeout),
		gameapi.WithPaths(gameapi.Paths{Reset: cfg.ResetPath, Move: cfg.MovePath, AI: cfg.AIPath}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.APITimeout)
	defer cancel()

	resp, err := client.Reset(ctx)
	if err != nil {
		log.Fatalf("%s error: %v", cfg.ResetPath, err)
	}
	pos, err := rules.Parse(resp.FEN)
	if err != nil {
		log.Fatalf("%s returned an unusable fen %q: %v", cfg.ResetPath, resp.FEN, err)
	}
	log.Printf("%s ok: fen=%q turn=%s legal=%d", cfg.ResetPath, pos.FEN(), pos.Turn(), pos.LegalMoveCount())

	if *play {
		probePlay(ctx, client, cfg, pos)
	}

	if *watch == "" {
		return
	}
	watchFeed(*watch, *watchFor)
}

func probePlay(ctx context.Context, client *gameapi.Client, cfg *config.AppConfig, pos *rules.Position) {
	mv, err := pos.PlaySAN("e4")
	if err != nil {
		log.Printf("skipping %s: e4 is not legal here", cfg.MovePath)
		return
	}
	resp, err := client.MakeMove(ctx, mv.SAN)
	if err != nil {
		log.Printf("%s error: %v", cfg.MovePath, err)
		return
	}
	log.Printf("%s ok: fen=%q", cfg.MovePath, resp.FEN)

	resp, err = client.AIMove(ctx, cfg.Difficulty)
	if err != nil {
		log.Printf("%s error: %v", cfg.AIPath, err)
		return
	}
	log.Printf("%s ok: move=%q fen=%q", cfg.AIPath, resp.Move, resp.FEN)
}

func watchFeed(url string, window time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		log.Printf("spectate connect error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var f spectate.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() == nil {
				log.Printf("spectate read error: %v", err)
			}
			return
		}
		fmt.Printf("v%d %s %s %q last=%s\n", f.Version, f.Pending, f.Turn, f.StatusText, f.LastMove)
	}
}
