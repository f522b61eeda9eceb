package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubTokenizer assigns ids to whitespace-separated words on first sight.
type stubTokenizer struct {
	mu    sync.Mutex
	vocab map[string]uint32
	words []string
}

func newStubTokenizer() *stubTokenizer {
	return &stubTokenizer{vocab: map[string]uint32{}}
}

func (t *stubTokenizer) idFor(word string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.vocab[word]; ok {
		return id
	}
	id := uint32(len(t.words))
	t.vocab[word] = id
	t.words = append(t.words, word)
	return id
}

func (t *stubTokenizer) Encode(text string) []uint32 {
	var ids []uint32
	for _, w := range strings.Fields(text) {
		ids = append(ids, t.idFor(w))
	}
	return ids
}

func (t *stubTokenizer) Decode(ids []uint32) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.words[id]
	}
	return strings.Join(out, " ")
}

func (t *stubTokenizer) Close() error { return nil }

// stubCache counts Release calls so tests can confirm the loop driver frees
// the final cache.
type stubCache struct {
	released *atomic.Int32
}

func (c *stubCache) Release() { c.released.Add(1) }

// stubLM emits a scripted token sequence. An empty or exhausted script
// repeats the last token forever, which models a generation that never
// produces EOS.
type stubLM struct {
	script []uint32
	pos    int

	inFlight atomic.Int32
	overlap  atomic.Bool
	released atomic.Int32
	stepErr  error

	// blockPrefill, when non-nil, makes Prefill wait until the channel is
	// closed. Used to pin the engine busy.
	blockPrefill chan struct{}
}

func (m *stubLM) emit() StepOutput {
	tok := m.script[len(m.script)-1]
	if m.pos < len(m.script) {
		tok = m.script[m.pos]
		m.pos++
	}
	logits := make([]float32, tok+2)
	logits[tok] = 1
	return StepOutput{Logits: logits, Cache: &stubCache{released: &m.released}}
}

func (m *stubLM) enter() {
	if m.inFlight.Add(1) > 1 {
		m.overlap.Store(true)
	}
	// Give a competing goroutine a chance to overlap if serialization is
	// broken.
	time.Sleep(time.Millisecond)
}

func (m *stubLM) leave() { m.inFlight.Add(-1) }

func (m *stubLM) Prefill(ids []int64) (StepOutput, error) {
	if m.blockPrefill != nil {
		<-m.blockPrefill
	}
	m.enter()
	defer m.leave()
	return m.emit(), nil
}

func (m *stubLM) Step(token int64, cache Cache) (StepOutput, error) {
	m.enter()
	defer m.leave()
	cache.Release()
	if m.stepErr != nil {
		return StepOutput{}, m.stepErr
	}
	return m.emit(), nil
}

func (m *stubLM) Close() error { return nil }

func newStubEngine(t *testing.T, lm *stubLM, tok *stubTokenizer, opts Options) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newEngine(lm, tok, opts, logger)
}

// script builds a token script from words, registering them with the
// tokenizer so Decode can map them back.
func script(tok *stubTokenizer, words ...string) []uint32 {
	ids := make([]uint32, len(words))
	for i, w := range words {
		ids[i] = tok.idFor(w)
	}
	return ids
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTranslateStopsAtEOS(t *testing.T) {
	tok := newStubTokenizer()
	lm := &stubLM{script: script(tok, "Bonjour", "le", "monde", DefaultEOSToken, "garbage")}
	e := newStubEngine(t, lm, tok, Options{})

	got, err := e.Translate(context.Background(), "translate Hello world")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Bonjour le monde" {
		t.Errorf("got %q, want %q", got, "Bonjour le monde")
	}
	if lm.released.Load() == 0 {
		t.Error("final cache was never released")
	}
}

func TestTranslateDeterministic(t *testing.T) {
	tok := newStubTokenizer()
	words := script(tok, "Hallo", "Welt", DefaultEOSToken)

	run := func() string {
		lm := &stubLM{script: words}
		e := newStubEngine(t, lm, tok, Options{})
		out, err := e.Translate(context.Background(), "some prompt")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		return out
	}

	first := run()
	for i := 0; i < 3; i++ {
		if got := run(); got != first {
			t.Fatalf("run %d produced %q, first run produced %q", i, got, first)
		}
	}
}

func TestTranslateHonorsTokenBudget(t *testing.T) {
	tok := newStubTokenizer()
	// Script never reaches EOS: the stub repeats "la" forever.
	lm := &stubLM{script: script(tok, "la")}
	e := newStubEngine(t, lm, tok, Options{MaxNewTokens: 7})

	got, err := e.Translate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if want := strings.TrimSpace(strings.Repeat("la ", 7)); got != want {
		t.Errorf("got %q, want %q (budget-capped partial output)", got, want)
	}
}

func TestTranslateInputTooLarge(t *testing.T) {
	tok := newStubTokenizer()
	lm := &stubLM{script: script(tok, DefaultEOSToken)}
	e := newStubEngine(t, lm, tok, Options{MaxInputTokens: 3})

	_, err := e.Translate(context.Background(), "one two three four five")
	if !errors.Is(err, ErrInputTooLarge) {
		t.Errorf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestTranslateStepErrorLeavesEngineUsable(t *testing.T) {
	tok := newStubTokenizer()
	lm := &stubLM{
		script:  script(tok, "x", "ok", DefaultEOSToken),
		stepErr: errors.New("forward pass blew up"),
	}
	e := newStubEngine(t, lm, tok, Options{})

	if _, err := e.Translate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected step error")
	}

	// The failure is fatal to that request only; the engine must serve the
	// next call.
	lm.stepErr = nil
	got, err := e.Translate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("engine unusable after failure: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}

func TestTranslateSerialized(t *testing.T) {
	tok := newStubTokenizer()
	lm := &stubLM{script: script(tok, "a", "b", "c", "d", DefaultEOSToken)}
	e := newStubEngine(t, lm, tok, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Translate(context.Background(), "prompt"); err != nil {
				t.Errorf("Translate: %v", err)
			}
		}()
	}
	wg.Wait()

	if lm.overlap.Load() {
		t.Error("two generations ran against the model concurrently")
	}
}

func TestTranslateQueuedCancellation(t *testing.T) {
	tok := newStubTokenizer()
	release := make(chan struct{})
	lm := &stubLM{script: script(tok, DefaultEOSToken), blockPrefill: release}
	e := newStubEngine(t, lm, tok, Options{})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		e.Translate(context.Background(), "prompt")
		close(done)
	}()
	<-started
	// Let the first call take the semaphore.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Translate(ctx, "prompt"); !errors.Is(err, context.Canceled) {
		t.Errorf("queued call with cancelled context: got %v, want context.Canceled", err)
	}

	close(release)
	<-done
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		logits []float32
		want   uint32
	}{
		{[]float32{0.1, 0.9, 0.3}, 1},
		{[]float32{5}, 0},
		{[]float32{-3, -1, -2}, 1},
		{[]float32{2, 2, 2}, 0}, // ties break toward the lowest id
	}
	for _, tt := range tests {
		if got := argmax(tt.logits); got != tt.want {
			t.Errorf("argmax(%v) = %d, want %d", tt.logits, got, tt.want)
		}
	}
}
