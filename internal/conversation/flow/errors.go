package flow

import (
	"errors"
	"fmt"

	"github.com/scribeai/scribe/internal/extract"
)

// ErrorKind classifies a failed turn.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindParseFailure is logged by extraction and never fails a turn.
	KindParseFailure      ErrorKind = extract.ParseFailureKind
	KindStorageFailure    ErrorKind = "storage_failure"
	KindGenerationFailure ErrorKind = "generation_failure"
	KindRecordingFailure  ErrorKind = "recording_failure"
)

// Stage names a step of the turn state machine.
type Stage string

const (
	StageResolving  Stage = "resolving_conversation"
	StageIngesting  Stage = "ingesting_files"
	StageComposing  Stage = "composing_prompt"
	StageGenerating Stage = "generating_response"
	StageRecording  Stage = "recording_turn"
	StageDone       Stage = "done"
)

// TurnError reports why and where a turn failed. ConversationID is set when
// the conversation was resolved before the failure.
type TurnError struct {
	Kind           ErrorKind
	Stage          Stage
	ConversationID string
	Err            error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// KindOf returns the kind of a turn error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// ConversationIDOf returns the conversation id carried by a turn error.
func ConversationIDOf(err error) string {
	var te *TurnError
	if errors.As(err, &te) {
		return te.ConversationID
	}
	return ""
}
