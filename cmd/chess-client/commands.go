package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-client/internal/adapter/termpresenter"
	"github.com/park285/cheese-chess-client/internal/archive"
	"github.com/park285/cheese-chess-client/internal/render"
	"github.com/park285/cheese-chess-client/internal/session"
)

var bareMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8]$`)

// archiveReader looks up finished games. *archive.Repository satisfies it.
type archiveReader interface {
	Get(ctx context.Context, sessionID string) (*archive.Record, error)
}

// shell dispatches one input line at a time. archive is nil when no database
// is configured.
type shell struct {
	ctrl      *session.Controller
	view      *termpresenter.Presenter
	archive   archiveReader
	exportDir string
	color     bool
	logger    *zap.Logger
}

// Execute runs line and reports whether the loop should continue.
func (s *shell) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	if cmd != "export" && cmd != "e" && cmd != "archive" {
		for i := range args {
			args[i] = strings.ToLower(args[i])
		}
	}

	if bareMove.MatchString(cmd) && len(args) == 0 {
		s.move(ctx, cmd[:2], cmd[2:])
		return true
	}

	switch cmd {
	case "exit", "quit", "x":
		s.view.Say("term.bye", nil, "Bye.")
		return false
	case "help", "h", "?":
		s.view.Say("term.help", nil, "Commands: new, move, ai, difficulty, color, show, history, export, archive, help, exit")
	case "new", "n":
		if _, err := s.ctrl.StartNewSession(ctx); err != nil {
			s.report(err, "term.start_failed", "Could not start a game: ")
		}
	case "move", "m":
		switch {
		case len(args) == 2:
			s.move(ctx, args[0], args[1])
		case len(args) == 1 && bareMove.MatchString(args[0]):
			s.move(ctx, args[0][:2], args[0][2:])
		default:
			s.view.Say("term.usage_move", nil, "Usage: move <from> <to>")
		}
	case "ai":
		if _, err := s.ctrl.RequestAIMove(ctx); err != nil {
			s.report(err, "term.ai_failed", "AI move failed: ")
		}
	case "difficulty", "d":
		if len(args) != 1 {
			s.view.Say("term.invalid_value", map[string]any{"Error": "usage: difficulty <easy|medium|hard>"}, "usage: difficulty <easy|medium|hard>")
			return true
		}
		st, err := s.ctrl.SetDifficulty(args[0])
		if err != nil {
			s.view.Say("term.invalid_value", map[string]any{"Error": err.Error()}, err.Error())
			return true
		}
		s.view.Say("term.difficulty_set", map[string]any{"Difficulty": string(st.Difficulty)}, "Difficulty set to "+string(st.Difficulty)+".")
	case "color", "colour", "c":
		if len(args) != 1 {
			s.view.Say("term.invalid_value", map[string]any{"Error": "usage: color <white|black>"}, "usage: color <white|black>")
			return true
		}
		st, err := s.ctrl.SetPlayerColor(args[0])
		if err != nil {
			s.view.Say("term.invalid_value", map[string]any{"Error": err.Error()}, err.Error())
			return true
		}
		s.view.Say("term.color_set", map[string]any{"Color": st.PlayerColor.Title()}, "You now play "+st.PlayerColor.Title()+".")
		if st.HasPosition() {
			s.view.Board(st)
		}
	case "show", "board", "b":
		st := s.ctrl.State()
		if !st.HasPosition() {
			s.view.Say("term.no_game", nil, "No game yet. Type 'new' to start one.")
			return true
		}
		s.view.Board(st)
	case "history", "moves":
		st := s.ctrl.State()
		s.view.History(st, st.HistoryComplete)
	case "export", "e":
		s.export(ctx, args)
	case "archive":
		s.showArchived(ctx, args)
	default:
		s.view.Say("term.unknown", map[string]any{"Command": cmd}, "Unknown command: "+cmd+". Type 'help'.")
	}
	return true
}

func (s *shell) move(ctx context.Context, from, to string) {
	if _, err := s.ctrl.SubmitMove(ctx, from, to); err != nil {
		if errors.Is(err, session.ErrIllegalMove) {
			s.view.Say("term.illegal", map[string]any{"From": from, "To": to}, "Illegal move: "+from+to)
			return
		}
		s.report(err, "term.move_failed", "The server rejected the move: ")
	}
}

// report maps controller errors onto messages. Remote failures use key.
func (s *shell) report(err error, key, prefix string) {
	switch {
	case errors.Is(err, session.ErrBusy):
		s.view.Say("term.busy", nil, "Please wait, a request is already in progress.")
	case errors.Is(err, session.ErrNotYourTurn):
		s.view.Say("term.not_your_turn", nil, "It is not your turn.")
	case errors.Is(err, session.ErrGameOver):
		s.view.Say("term.game_over", nil, "The game is over. Type 'new' to play again.")
	case errors.Is(err, session.ErrNoPosition):
		s.view.Say("term.no_game", nil, "No game yet. Type 'new' to start one.")
	default:
		s.logger.Debug("command_failed", zap.String("key", key), zap.Error(err))
		s.view.Say(key, map[string]any{"Error": err.Error()}, prefix+err.Error())
	}
}

func (s *shell) export(ctx context.Context, args []string) {
	st := s.ctrl.State()
	pos := st.Position()
	if pos == nil {
		s.view.Say("term.no_game", nil, "No game yet. Type 'new' to start one.")
		return
	}
	if len(args) > 1 {
		s.view.Say("term.usage_export", nil, "Usage: export <file.png>")
		return
	}
	path := defaultExportName(st)
	if len(args) == 1 {
		path = args[0]
	}
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(s.exportDir, path)
	}

	header := fmt.Sprintf("%s | You play %s | %s", titleCase(string(st.Difficulty)), st.PlayerColor.Title(), st.StatusText)
	if st.Opening != "" {
		header += " | " + st.Opening
	}
	data, err := render.PNG(ctx, pos.Board(), render.PNGOptions{
		Orientation: st.PlayerColor,
		LastFrom:    st.LastMove.From,
		LastTo:      st.LastMove.To,
		Mover:       st.Turn.Opposite(),
		Header:      header,
		Footer:      fmt.Sprintf("%d plies | %s to move", len(st.MovesSAN), st.Turn.Title()),
	})
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		s.view.Say("term.export_failed", map[string]any{"Error": err.Error()}, "Export failed: "+err.Error())
		return
	}
	s.view.Say("term.exported", map[string]any{"Path": path}, "Board saved to "+path+".")
}

// showArchived prints the stored PGN of a finished game, the current one by
// default.
func (s *shell) showArchived(ctx context.Context, args []string) {
	if s.archive == nil {
		s.view.Say("term.archive_disabled", nil, "The archive is not configured. Set DATABASE_URL to enable it.")
		return
	}
	if len(args) > 1 {
		s.view.Say("term.usage_archive", nil, "Usage: archive [session-id]")
		return
	}
	id := s.ctrl.State().SessionID
	if len(args) == 1 {
		id = args[0]
	}
	if id == "" {
		s.view.Say("term.no_game", nil, "No game yet. Type 'new' to start one.")
		return
	}

	rec, err := s.archive.Get(ctx, id)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		s.view.Say("term.archive_missing", map[string]any{"SessionID": id}, "No archived game for "+id+".")
		return
	case err != nil:
		s.logger.Warn("archive_lookup_failed", zap.String("session_id", id), zap.Error(err))
		s.view.Say("term.archive_failed", map[string]any{"Error": err.Error()}, "Archive lookup failed: "+err.Error())
		return
	}
	s.view.Say("term.archive_header", map[string]any{
		"SessionID":   rec.SessionID,
		"Result":      rec.Result,
		"Termination": rec.Termination,
	}, rec.SessionID+": "+rec.Result+" ("+rec.Termination+")")
	s.view.Say("term.archive_pgn", map[string]any{"PGN": rec.PGN}, rec.PGN)
}

func defaultExportName(st session.State) string {
	id := st.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "board"
	}
	return fmt.Sprintf("chess-%s-%d.png", id, len(st.MovesSAN))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// buildPrompt shows the player's colour and whose turn it is.
func buildPrompt(st session.State, color bool) string {
	base := "chess"
	if !st.HasPosition() {
		if !color {
			return base + " > "
		}
		return render.Prompt(base)
	}
	side := render.ColorForTurn(st.PlayerColor, color)
	turn := render.ColorForTurn(st.Turn, color)
	if !color {
		return fmt.Sprintf("%s [%s] - Turn:%s > ", base, side, turn)
	}
	return render.Prompt(base + render.Yellow + " [" + render.Reset + side + render.Yellow + "]" + " - Turn:" + turn + render.Yellow)
}
