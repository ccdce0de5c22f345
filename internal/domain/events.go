package domain

// Event is the closed set of server-to-client broadcasts. Every variant
// carries its own typed payload; EventType is the wire discriminator.
type Event interface {
	EventType() string
}

// RoomJoined delivers the full room snapshot to the session that just joined.
type RoomJoined struct {
	Room RoomSnapshot `json:"room"`
}

func (RoomJoined) EventType() string { return "roomJoined" }

// UserJoined announces a participant joining (or reconnecting).
type UserJoined struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserJoined) EventType() string { return "userJoined" }

// UserLeft announces a participant leaving or disconnecting.
type UserLeft struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserLeft) EventType() string { return "userLeft" }

// UserReadyStatus announces a ready-flag change during the lobby phase.
type UserReadyStatus struct {
	UserID  string `json:"userId"`
	IsReady bool   `json:"isReady"`
}

func (UserReadyStatus) EventType() string { return "userReadyStatus" }

// BattleStarted carries the attached question set to every session.
type BattleStarted struct {
	Questions []Question `json:"questions"`
}

func (BattleStarted) EventType() string { return "battleStarted" }

// UpdateProgress announces one participant's new position and score.
type UpdateProgress struct {
	UserID               string `json:"userId"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	Score                int    `json:"score"`
}

func (UpdateProgress) EventType() string { return "updateProgress" }

// UserFinished announces that a participant answered the last question.
type UserFinished struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (UserFinished) EventType() string { return "userFinished" }

// BattleEnded carries the final ranked results. Reason is "completed" when
// every participant finished, "stopped" on an admin-forced end.
type BattleEnded struct {
	Results []Result `json:"results"`
	Reason  string   `json:"reason"`
}

func (BattleEnded) EventType() string { return "battleEnded" }

// ChatMessage relays lobby/battle chat to participants.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (ChatMessage) EventType() string { return "chatMessage" }

// ErrorEvent reports a rejected request to the offending sender only.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return "error" }
