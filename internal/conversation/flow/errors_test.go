package flow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/scribeai/scribe/internal/extract"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	te := &TurnError{Kind: KindStorageFailure, Stage: StageIngesting, ConversationID: "c1", Err: cause}
	wrapped := fmt.Errorf("handler: %w", te)

	if KindOf(wrapped) != KindStorageFailure {
		t.Fatalf("unexpected kind %q", KindOf(wrapped))
	}
	if ConversationIDOf(wrapped) != "c1" {
		t.Fatalf("unexpected conversation id %q", ConversationIDOf(wrapped))
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause must be reachable through Unwrap")
	}
	if KindOf(cause) != "" || ConversationIDOf(nil) != "" {
		t.Fatalf("plain errors carry no kind")
	}
	if te.Error() != "storage_failure during ingesting_files: boom" {
		t.Fatalf("unexpected message %q", te.Error())
	}
}

func TestParseFailureKindMatchesExtractionLogs(t *testing.T) {
	t.Parallel()
	if string(KindParseFailure) != extract.ParseFailureKind {
		t.Fatalf("kind %q differs from extraction log kind %q", KindParseFailure, extract.ParseFailureKind)
	}
}

func TestWithConversationKeepsKind(t *testing.T) {
	t.Parallel()
	in := &TurnError{Kind: KindRecordingFailure, Stage: StageIngesting, Err: errors.New("x")}
	out := withConversation(in, "c9", StageIngesting)
	if out.Kind != KindRecordingFailure || out.ConversationID != "c9" {
		t.Fatalf("unexpected %+v", out)
	}
	if in.ConversationID != "" {
		t.Fatalf("input must not be mutated")
	}
	plain := withConversation(errors.New("y"), "c9", StageIngesting)
	if plain.Kind != KindStorageFailure {
		t.Fatalf("plain errors default to storage failure, got %q", plain.Kind)
	}
}
