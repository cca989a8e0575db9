package gameapi

import "fmt"

// Default endpoint paths of the game service.
const (
	DefaultResetPath = "/reset"
	DefaultMovePath  = "/make_move"
	DefaultAIPath    = "/ai_move"
)

type MoveRequest struct {
	Move string `json:"move"`
}

type AIMoveRequest struct {
	Difficulty string `json:"difficulty"`
}

// Response is the common body of all three endpoints. Only FEN is required.
type Response struct {
	Status  string `json:"status,omitempty"`
	FEN     string `json:"fen"`
	Move    string `json:"move,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is returned for non-2xx replies.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("game api error: path=%s status=%d message=%s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("game api error: path=%s status=%d body=%s", e.Path, e.StatusCode, e.Body)
}

// Paths overrides endpoint paths. Empty fields keep the defaults.
type Paths struct {
	Reset string
	Move  string
	AI    string
}
