package flow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/scribeai/scribe/internal/conversation"
	"github.com/scribeai/scribe/internal/extract"
	"github.com/scribeai/scribe/internal/media"
	"github.com/scribeai/scribe/internal/message"
	"github.com/scribeai/scribe/internal/prompt"
)

type fakeResolver struct {
	mu     sync.Mutex
	titles map[string]string
	err    error
}

func (r *fakeResolver) Resolve(_ context.Context, existingID, firstUserText, _ string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.titles == nil {
		r.titles = map[string]string{}
	}
	id := uuid.NewString()
	r.titles[id] = conversation.DeriveTitle(firstUserText)
	return id, nil
}

type fakeFiles struct {
	mu        sync.Mutex
	files     map[string]media.File
	failAfter int
	failErr   error
	calls     int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string]media.File{}, failAfter: -1}
}

func (f *fakeFiles) Ingest(_ context.Context, in media.IngestInput) (media.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		return media.File{}, f.failErr
	}
	f.calls++
	file := media.File{
		ID:           uuid.NewString(),
		Name:         in.OwnerID + "/" + in.OriginalName,
		OriginalName: in.OriginalName,
		Type:         in.MediaType,
		Size:         int64(len(in.Data)),
		Pages:        in.Pages,
		UserID:       in.OwnerID,
	}
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeFiles) Discard(_ context.Context, files []media.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range files {
		delete(f.files, file.ID)
	}
	return nil
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	images  [][]extract.ImagePayload
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, promptText string, images []extract.ImagePayload) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, promptText)
	g.images = append(g.images, images)
	if g.err != nil {
		return "", g.err
	}
	if g.reply == "" {
		return "reply to: " + promptText, nil
	}
	return g.reply, nil
}

type fakeMessages struct {
	mu            sync.Mutex
	messages      []message.Message
	links         map[string][]string
	failAssistant bool
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{links: map[string][]string{}}
}

func (m *fakeMessages) Persist(_ context.Context, in message.PersistInput) (message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAssistant && in.Role == message.RoleAssistant {
		return message.Message{}, errors.New("insert failed")
	}
	msg := message.Message{ID: uuid.NewString(), ConversationID: in.ConversationID, Role: in.Role, Content: in.Content}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *fakeMessages) LinkFiles(_ context.Context, messageID string, fileIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[messageID] = append(m.links[messageID], fileIDs...)
	return nil
}

func (m *fakeMessages) Delete(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ID != messageID {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	delete(m.links, messageID)
	return nil
}

func (m *fakeMessages) inConversation(id string) []message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []message.Message
	for _, msg := range m.messages {
		if msg.ConversationID == id {
			out = append(out, msg)
		}
	}
	return out
}

// stubExtractor returns a fixed result per media type.
type stubExtractor map[string]extract.Result

func (s stubExtractor) Extract(_ context.Context, _ []byte, mediaType string) extract.Result {
	return s[mediaType]
}

type harness struct {
	pipeline  *Pipeline
	resolver  *fakeResolver
	files     *fakeFiles
	generator *fakeGenerator
	messages  *fakeMessages
}

func newHarness(t *testing.T, extractor Extractor, opts Options) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		resolver:  &fakeResolver{},
		files:     newFakeFiles(),
		generator: &fakeGenerator{},
		messages:  newFakeMessages(),
	}
	h.pipeline = NewPipeline(log,
		h.resolver,
		NewIngestor(log, extractor, h.files),
		h.generator,
		NewRecorder(log, h.messages),
		h.files,
		opts,
	)
	return h
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func intPtr(n int) *int { return &n }

func TestHandleTurnTextOnlyNewConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{CleanupOnFailure: true})

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{OwnerID: "user-1", Text: "Hello"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.ConversationID == "" || res.Reply == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.resolver.titles[res.ConversationID]; got != "Hello" {
		t.Fatalf("expected title Hello, got %q", got)
	}
	msgs := h.messages.inConversation(res.ConversationID)
	if len(msgs) != 2 || msgs[0].Role != message.RoleUser || msgs[0].Content != "Hello" || msgs[1].Role != message.RoleAssistant {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[1].Content != res.Reply {
		t.Fatalf("assistant message must hold the reply")
	}
	if h.generator.prompts[0] != "Hello" || h.generator.images[0] != nil {
		t.Fatalf("expected text-only generation with the raw text, got %q", h.generator.prompts[0])
	}
	if len(res.SkippedFiles) != 0 {
		t.Fatalf("no files means nothing skipped")
	}
}

func TestHandleTurnPDFWithoutText(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("p", 20000)
	h := newHarness(t, stubExtractor{
		extract.MediaTypePDF: {Text: long, PageCount: intPtr(7)},
	}, Options{CleanupOnFailure: true})

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "user-1",
		Files:   []Upload{{Name: "paper.pdf", MediaType: extract.MediaTypePDF, Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(res.FileIDs) != 1 {
		t.Fatalf("expected one file, got %d", len(res.FileIDs))
	}
	file := h.files.files[res.FileIDs[0]]
	if file.Pages == nil || *file.Pages != 7 {
		t.Fatalf("expected page count 7, got %v", file.Pages)
	}
	if got := h.resolver.titles[res.ConversationID]; got != conversation.DefaultTitle {
		t.Fatalf("expected default title, got %q", got)
	}

	msgs := h.messages.inConversation(res.ConversationID)
	if msgs[0].Content != FallbackUserContent {
		t.Fatalf("expected fallback user content, got %q", msgs[0].Content)
	}
	if links := h.messages.links[msgs[0].ID]; len(links) != 1 || links[0] != res.FileIDs[0] {
		t.Fatalf("expected file linked to user message, got %v", links)
	}

	want := prompt.FallbackPrompt + "\n\n--- File: paper.pdf ---\n" + long[:prompt.MaxFragmentChars]
	if h.generator.prompts[0] != want {
		t.Fatalf("unexpected prompt (len %d, want %d)", len(h.generator.prompts[0]), len(want))
	}
}

func TestHandleTurnCorruptImageStillRecorded(t *testing.T) {
	t.Parallel()
	registry := extract.NewDefaultRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := newHarness(t, registry, Options{CleanupOnFailure: true})

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "user-1",
		Text:    "compare",
		Files: []Upload{
			{Name: "good.png", MediaType: "image/png", Data: pngBytes(t, 4, 3)},
			{Name: "bad.png", MediaType: "image/png", Data: []byte("not an image")},
		},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(res.FileIDs) != 2 {
		t.Fatalf("both files must be created, got %d", len(res.FileIDs))
	}
	msgs := h.messages.inConversation(res.ConversationID)
	if links := h.messages.links[msgs[0].ID]; len(links) != 2 {
		t.Fatalf("both files must be linked, got %v", links)
	}
	if len(h.generator.images[0]) != 1 {
		t.Fatalf("only the valid image may reach the model, got %d", len(h.generator.images[0]))
	}
	if !strings.Contains(h.generator.prompts[0], "--- File: good.png ---\nImage file: 4x3") {
		t.Fatalf("missing fragment for good image: %q", h.generator.prompts[0])
	}
	if strings.Contains(h.generator.prompts[0], "bad.png") {
		t.Fatalf("corrupt image must not contribute a fragment")
	}
	if len(res.SkippedFiles) != 1 || res.SkippedFiles[0] != "bad.png" {
		t.Fatalf("expected bad.png to be reported as skipped, got %v", res.SkippedFiles)
	}
}

func TestHandleTurnTwoImagesMultiModal(t *testing.T) {
	t.Parallel()
	registry := extract.NewDefaultRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := newHarness(t, registry, Options{})

	_, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "user-1",
		Files: []Upload{
			{Name: "first.png", MediaType: "image/png", Data: pngBytes(t, 1, 1)},
			{Name: "second.png", MediaType: "image/png", Data: pngBytes(t, 2, 2)},
		},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	images := h.generator.images[0]
	if len(images) != 2 {
		t.Fatalf("expected two image payloads, got %d", len(images))
	}
	first := extract.ImageExtractor{}
	want, _ := first.Extract(context.Background(), pngBytes(t, 1, 1), "image/png")
	if images[0].Base64 != want.Image.Base64 {
		t.Fatalf("images must be passed in attachment order")
	}
	if !strings.HasPrefix(h.generator.prompts[0], prompt.FallbackPrompt) {
		t.Fatalf("expected fallback lead, got %q", h.generator.prompts[0])
	}
}

func TestHandleTurnExistingConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{OwnerID: "u", ConversationID: "conv-7", Text: "again"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.ConversationID != "conv-7" || len(h.resolver.titles) != 0 {
		t.Fatalf("existing conversation must be reused, got %q", res.ConversationID)
	}
}

func TestHandleTurnGenerationFailureCleansUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{"text/plain": {}}, Options{CleanupOnFailure: true})
	h.generator.err = errors.New("model unavailable")

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "u",
		Text:    "hi",
		Files:   []Upload{{Name: "a.txt", MediaType: "text/plain", Data: []byte("a")}},
	})
	if KindOf(err) != KindGenerationFailure {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if res.ConversationID == "" || ConversationIDOf(err) != res.ConversationID {
		t.Fatalf("failure must carry the created conversation id")
	}
	if h.files.count() != 0 {
		t.Fatalf("files of the failed turn must be removed")
	}
	if len(h.messages.inConversation(res.ConversationID)) != 0 {
		t.Fatalf("no messages may be recorded before generation succeeds")
	}
	var te *TurnError
	if !errors.As(err, &te) || te.Stage != StageGenerating {
		t.Fatalf("expected generating stage, got %+v", te)
	}
}

func TestHandleTurnStorageFailureMidway(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{CleanupOnFailure: true})
	h.files.failAfter = 1
	h.files.failErr = fmt.Errorf("%w: disk full", media.ErrUpload)

	_, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "u",
		Files: []Upload{
			{Name: "one.pdf", MediaType: extract.MediaTypePDF, Data: []byte("1")},
			{Name: "two.pdf", MediaType: extract.MediaTypePDF, Data: []byte("2")},
		},
	})
	if KindOf(err) != KindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !errors.Is(err, media.ErrUpload) {
		t.Fatalf("expected the upload cause to be preserved, got %v", err)
	}
	if h.files.count() != 0 {
		t.Fatalf("file created before the failure must be removed")
	}
	if len(h.generator.prompts) != 0 {
		t.Fatalf("generation must not run after a storage failure")
	}
}

func TestHandleTurnFileRecordFailureKind(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	h.files.failAfter = 0
	h.files.failErr = fmt.Errorf("%w: constraint", media.ErrRecord)

	_, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "u",
		Files:   []Upload{{Name: "one.pdf", MediaType: extract.MediaTypePDF, Data: []byte("1")}},
	})
	if KindOf(err) != KindRecordingFailure {
		t.Fatalf("expected recording failure, got %v", err)
	}
}

func TestHandleTurnRecordingFailureRollsBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{CleanupOnFailure: true})
	h.messages.failAssistant = true

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "u",
		Text:    "hi",
		Files:   []Upload{{Name: "a.pdf", MediaType: extract.MediaTypePDF, Data: []byte("a")}},
	})
	if KindOf(err) != KindRecordingFailure {
		t.Fatalf("expected recording failure, got %v", err)
	}
	if len(h.messages.inConversation(res.ConversationID)) != 0 {
		t.Fatalf("user message must be rolled back")
	}
	if h.files.count() != 0 {
		t.Fatalf("files must be removed")
	}
}

func TestHandleTurnCleanupDisabledKeepsFiles(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{CleanupOnFailure: false})
	h.generator.err = errors.New("boom")

	_, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "u",
		Files:   []Upload{{Name: "a.pdf", MediaType: extract.MediaTypePDF, Data: []byte("a")}},
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if h.files.count() != 1 {
		t.Fatalf("files must be kept when cleanup is disabled")
	}
}

func TestHandleTurnRequiresOwner(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	_, err := h.pipeline.HandleTurn(context.Background(), TurnInput{Text: "hi"})
	if KindOf(err) != KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if len(h.resolver.titles) != 0 {
		t.Fatalf("no conversation may be created without an owner")
	}
}

func TestHandleTurnResolveFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	h.resolver.err = errors.New("db down")
	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{OwnerID: "u", Text: "hi"})
	if KindOf(err) != KindRecordingFailure || res.ConversationID != "" {
		t.Fatalf("expected recording failure without conversation, got %v (%q)", err, res.ConversationID)
	}
}

func TestHandleTurnIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.pipeline.HandleTurn(ctx, TurnInput{OwnerID: "u", Text: "hi"}); err != nil {
		t.Fatalf("turn must complete after caller cancellation: %v", err)
	}
}

func TestHandleTurnConcurrentTurnsAreIndependent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	const turns = 16
	results := make([]TurnResult, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{OwnerID: "u", Text: fmt.Sprintf("turn %d", i)})
			if err != nil {
				t.Errorf("turn %d: %v", i, err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		if seen[res.ConversationID] {
			t.Fatalf("conversation ids must be distinct")
		}
		seen[res.ConversationID] = true
		msgs := h.messages.inConversation(res.ConversationID)
		if len(msgs) != 2 || msgs[0].Content != fmt.Sprintf("turn %d", i) {
			t.Fatalf("turn %d recorded wrong messages: %+v", i, msgs)
		}
	}
}

func TestHandleTurnScannedPDFIsReportedSkipped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{
		extract.MediaTypePDF: {Text: "  \n", PageCount: intPtr(2)},
	}, Options{CleanupOnFailure: true})

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "user-1",
		Text:    "what is in this scan?",
		Files:   []Upload{{Name: "scan.pdf", MediaType: extract.MediaTypePDF, Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if got := h.files.files[res.FileIDs[0]].Pages; got == nil || *got != 2 {
		t.Fatalf("page count must still be recorded, got %v", got)
	}
	if want := "what is in this scan?\n\n--- File: scan.pdf ---\n  \n"; h.generator.prompts[0] != want {
		t.Fatalf("blank text still forms a fragment: got %q, want %q", h.generator.prompts[0], want)
	}
	if len(res.SkippedFiles) != 1 || res.SkippedFiles[0] != "scan.pdf" {
		t.Fatalf("expected scan.pdf to be reported as skipped, got %v", res.SkippedFiles)
	}
}

func TestHandleTurnScannedPDFWithoutTextUsesFallbackPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{
		extract.MediaTypePDF: {Text: "\n\n", PageCount: intPtr(1)},
	}, Options{CleanupOnFailure: true})

	res, err := h.pipeline.HandleTurn(context.Background(), TurnInput{
		OwnerID: "user-1",
		Files:   []Upload{{Name: "scan.pdf", MediaType: extract.MediaTypePDF, Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	want := prompt.FallbackPrompt + "\n\n--- File: scan.pdf ---\n\n\n"
	if h.generator.prompts[0] != want {
		t.Fatalf("unexpected prompt: got %q, want %q", h.generator.prompts[0], want)
	}
	if len(res.SkippedFiles) != 1 || res.SkippedFiles[0] != "scan.pdf" {
		t.Fatalf("expected scan.pdf to be reported as skipped, got %v", res.SkippedFiles)
	}
}

func TestHandleTurnWalksStagesInOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, stubExtractor{}, Options{})
	var buf bytes.Buffer
	h.pipeline.logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := h.pipeline.HandleTurn(context.Background(), TurnInput{OwnerID: "user-1", Text: "hi"}); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	logs := buf.String()
	last := -1
	for _, stage := range []Stage{StageResolving, StageIngesting, StageComposing, StageGenerating, StageRecording, StageDone} {
		idx := strings.Index(logs, "stage="+string(stage))
		if idx <= last {
			t.Fatalf("stage %s missing or out of order in:\n%s", stage, logs)
		}
		last = idx
	}
}
