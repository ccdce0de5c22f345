package domain

import "time"

// RoomStatus tracks where a battle room is in its lifecycle.
// Transitions only move forward: WAITING -> ACTIVE -> ENDED -> EXPIRED.
type RoomStatus string

const (
	StatusWaiting RoomStatus = "WAITING"
	StatusActive  RoomStatus = "ACTIVE"
	StatusEnded   RoomStatus = "ENDED"
	StatusExpired RoomStatus = "EXPIRED"
)

// Question models an MCQ question with exactly one correct option.
// Immutable once attached to a room.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Chapter is a named, ordered question set resolved by the question source.
type Chapter struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Participant represents a user playing in a battle room and their
// accumulated progress. Owned exclusively by the room actor.
type Participant struct {
	UserID               string `json:"userId"`
	Username             string `json:"username"`
	IsReady              bool   `json:"isReady"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	Score                int    `json:"score"`
	Connected            bool   `json:"connected"`

	// AnsweredQuestions guards against double-scoring the same index.
	AnsweredQuestions map[int]struct{} `json:"-"`
	CorrectAnswers    int              `json:"-"`
	TotalTimeMs       int64            `json:"-"`
}

// Result is one participant's final standing, computed once when the
// battle ends and immutable thereafter.
type Result struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalQuestions int    `json:"totalQuestions"`
	TotalTimeMs    int64  `json:"totalTimeMs"`
}

// RoomSnapshot is the full room state sent to a session on (re)join.
type RoomSnapshot struct {
	ID             string        `json:"id"`
	Status         RoomStatus    `json:"status"`
	Chapter        string        `json:"chapter,omitempty"`
	CreatorID      string        `json:"creatorId"`
	Participants   []Participant `json:"participants"`
	SpectatorCount int           `json:"spectatorCount"`
	Questions      []Question    `json:"questions,omitempty"`
	Results        []Result      `json:"results,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	StartedAt      *time.Time    `json:"startedAt,omitempty"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
}
