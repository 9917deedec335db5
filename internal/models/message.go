package models

import (
	"sync/atomic"
	"time"
)

// MessageKind classifies entries in a room's append-only log.
type MessageKind string

const (
	KindChat     MessageKind = "CHAT"
	KindQuestion MessageKind = "QUESTION"
	KindAnswer   MessageKind = "ANSWER"
	KindHint     MessageKind = "HINT"
	KindSystem   MessageKind = "SYSTEM"
)

// Verdict is one of the fixed answer codes a Questioner (human or arbiter)
// may give to a question. CORRECT is only produced by the arbiter, when the
// question itself states the full solution.
type Verdict string

const (
	VerdictYes      Verdict = "YES"
	VerdictNo       Verdict = "NO"
	VerdictCritical Verdict = "CRITICAL"
	VerdictSkip     Verdict = "SKIP"
	VerdictCorrect  Verdict = "CORRECT"
)

// ValidAnswerVerdict reports whether v may be used by a human Questioner in
// answer_question. CORRECT is excluded: humans end the game via judge_guess.
func ValidAnswerVerdict(v Verdict) bool {
	switch v {
	case VerdictYes, VerdictNo, VerdictCritical, VerdictSkip:
		return true
	}
	return false
}

// Message is one immutable entry in a room or session log. AuthorID is empty
// for system-generated messages. TargetID links an ANSWER to the QUESTION it
// resolves and is zero otherwise.
type Message struct {
	ID        int64       `json:"id"`
	AuthorID  string      `json:"userId,omitempty"`
	Nickname  string      `json:"nickname"`
	Body      string      `json:"message"`
	Kind      MessageKind `json:"type"`
	TargetID  int64       `json:"targetId,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

var messageSeq atomic.Int64

// NewMessage allocates a message with a process-unique monotonic id and the
// current wall-clock timestamp in milliseconds.
func NewMessage(authorID, nickname, body string, kind MessageKind) Message {
	return Message{
		ID:        messageSeq.Add(1),
		AuthorID:  authorID,
		Nickname:  nickname,
		Body:      body,
		Kind:      kind,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewAnswer allocates an ANSWER message linked to the given question id.
func NewAnswer(authorID, nickname string, verdict Verdict, questionID int64) Message {
	m := NewMessage(authorID, nickname, string(verdict), KindAnswer)
	m.TargetID = questionID
	return m
}

// PendingGuess is a submitted solution attempt awaiting judgment, held in the
// room's per-Questioner FIFO queue.
type PendingGuess struct {
	GuesserID   string `json:"guesserId"`
	GuesserName string `json:"guesserName"`
	Text        string `json:"guess"`
	Seq         int64  `json:"seq"`
}
