package protocol

// Wire contract consumed by the browser clients. These names are load-bearing:
// renaming or repurposing any of them breaks deployed consumers. Adding fields
// is safe, clients ignore what they don't know.

// Server -> client.
const (
	MsgAssignedSide  = "assigned_side"
	MsgCountdown     = "countdown"
	MsgWoCountdown   = "wo_countdown"
	MsgGameStart     = "game_start"
	MsgPaused        = "paused"
	MsgResumed       = "resumed"
	MsgStateUpdate   = "state_update"
	MsgWalkover      = "walkover"
	MsgMatchFinished = "match_finished"
)

// Client -> server.
const (
	MsgPlayerMove = "player_move"
	MsgPauseGame  = "pause_game"
	MsgResumeGame = "resume_game"
)

type ServerMessage struct {
	Type     string        `json:"type"`
	Side     string        `json:"side,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	State    *StatePayload `json:"state,omitempty"`
}

// StatePayload carries every type-specific "state" body in the contract;
// which fields are set depends on the message type.
type StatePayload struct {
	Message     string            `json:"message,omitempty"`
	Countdown   int               `json:"countdown,omitempty"`
	Tick        uint64            `json:"tick,omitempty"`
	Ball        *BallPayload      `json:"ball,omitempty"`
	Paddles     *PaddlesPayload   `json:"paddles,omitempty"`
	Scores      *ScoresPayload    `json:"scores,omitempty"`
	FinalAlert  map[string]string `json:"final_alert,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
}

type BallPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PaddlesPayload struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type ScoresPayload struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type ClientMessage struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
}
