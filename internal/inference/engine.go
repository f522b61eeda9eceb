// Package inference owns the loaded translation model and runs prefill plus
// greedy autoregressive decoding against it. There is exactly one model
// session per process and at most one generation in flight at a time.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/langtransd/langtrans/internal/prompt"
)

const (
	// DefaultMaxNewTokens caps the decode loop so a generation that never
	// emits an end-of-sequence token cannot run unbounded. Hitting the cap
	// is not an error; the partial output is returned as-is.
	DefaultMaxNewTokens = 512
	// DefaultMaxInputTokens bounds the prompt length accepted for prefill.
	DefaultMaxInputTokens = 2048
	// DefaultEOSToken is the end-of-turn marker emitted by the model family
	// this service ships with.
	DefaultEOSToken = "<end_of_turn>"
)

// ErrInputTooLarge is returned when the tokenized prompt exceeds the input
// budget. Handlers map it to a client error.
var ErrInputTooLarge = errors.New("input text too large")

// Cache is the opaque per-generation key/value state threaded between decode
// steps. Implementations own any native resources and free them in Release.
type Cache interface {
	Release()
}

// StepOutput is what one forward pass yields: the logits for the final
// position and the extended cache.
type StepOutput struct {
	Logits []float32
	Cache  Cache
}

// causalLM is the step function the decode loop drives. Prefill runs one
// forward pass over the whole prompt; Step feeds a single new token.
// Step takes ownership of the cache passed in; the caller releases only the
// cache of the final step it received.
type causalLM interface {
	Prefill(ids []int64) (StepOutput, error)
	Step(token int64, cache Cache) (StepOutput, error)
	Close() error
}

// tokenizer converts between text and the model's vocabulary.
type tokenizer interface {
	Encode(text string) []uint32
	Decode(ids []uint32) string
	Close() error
}

// Options configures engine construction.
type Options struct {
	// ModelDir holds model.onnx and tokenizer.json.
	ModelDir string
	// LibraryPath optionally points at the ONNX Runtime shared library.
	LibraryPath string

	MaxNewTokens   int
	MaxInputTokens int
	EOSToken       string
}

// Engine is the sole owner of the model session. Generations are serialized
// through a capacity-1 semaphore: callers queue in acquisition order and a
// running generation is never interrupted, only its result discarded if the
// caller has gone away.
type Engine struct {
	lm     causalLM
	tok    tokenizer
	sem    chan struct{}
	logger *slog.Logger

	eosID    uint32
	maxNew   int
	maxInput int
}

// New loads the ONNX model and tokenizer from opts.ModelDir and returns a
// ready engine. Loading is expensive; do it once at startup.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	lm, err := newORTModel(opts.ModelDir, opts.LibraryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	tok, err := newHFTokenizer(opts.ModelDir)
	if err != nil {
		lm.Close()
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return newEngine(lm, tok, opts, logger), nil
}

// newEngine wires an engine from its parts. Split out so tests can drive the
// decode loop with a stub model.
func newEngine(lm causalLM, tok tokenizer, opts Options, logger *slog.Logger) *Engine {
	e := &Engine{
		lm:       lm,
		tok:      tok,
		sem:      make(chan struct{}, 1),
		logger:   logger,
		maxNew:   opts.MaxNewTokens,
		maxInput: opts.MaxInputTokens,
	}
	if e.maxNew <= 0 {
		e.maxNew = DefaultMaxNewTokens
	}
	if e.maxInput <= 0 {
		e.maxInput = DefaultMaxInputTokens
	}

	eosToken := opts.EOSToken
	if eosToken == "" {
		eosToken = DefaultEOSToken
	}
	if ids := tok.Encode(eosToken); len(ids) == 1 {
		e.eosID = ids[0]
	} else {
		e.eosID = 1
		logger.Warn("eos token did not encode to a single id, falling back", "token", eosToken, "fallback_id", e.eosID)
	}
	return e
}

// Translate runs the full generation pipeline for an already-built prompt
// and returns the cleaned model output. If ctx is cancelled while the call
// is still queued for the model, it gives up without running; once a
// generation has started it always runs to completion.
func (e *Engine) Translate(ctx context.Context, promptText string) (string, error) {
	ids64 := e.encode(promptText)
	if len(ids64) > e.maxInput {
		return "", fmt.Errorf("%w: %d tokens (limit %d)", ErrInputTooLarge, len(ids64), e.maxInput)
	}
	if len(ids64) == 0 {
		return "", errors.New("empty prompt after tokenization")
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.sem }()

	start := time.Now()
	tokens, err := e.generate(ids64)
	if err != nil {
		return "", err
	}
	e.logger.Debug("generation finished",
		"prompt_tokens", len(ids64),
		"output_tokens", len(tokens),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return prompt.CleanOutput(e.tok.Decode(tokens)), nil
}

// generate drives the prefill-then-decode loop. Termination (end token or
// token budget) is decided here, outside the step function.
func (e *Engine) generate(ids []int64) (_ []uint32, err error) {
	out, err := e.lm.Prefill(ids)
	if err != nil {
		return nil, fmt.Errorf("prefill: %w", err)
	}
	cache := out.Cache
	defer func() {
		if cache != nil {
			cache.Release()
		}
	}()

	next := argmax(out.Logits)
	tokens := make([]uint32, 0, e.maxNew)

	for next != e.eosID {
		tokens = append(tokens, next)
		if len(tokens) >= e.maxNew {
			break
		}

		stepCache := cache
		cache = nil // ownership moves to Step
		step, err := e.lm.Step(int64(next), stepCache)
		if err != nil {
			return nil, fmt.Errorf("decode step %d: %w", len(tokens), err)
		}
		cache = step.Cache
		next = argmax(step.Logits)
	}
	return tokens, nil
}

// Close releases the model session and tokenizer.
func (e *Engine) Close() error {
	terr := e.tok.Close()
	if err := e.lm.Close(); err != nil {
		return err
	}
	return terr
}

func (e *Engine) encode(text string) []int64 {
	ids := e.tok.Encode(text)
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// argmax picks the highest-scoring token id. Greedy selection keeps output
// deterministic for a fixed prompt.
func argmax(logits []float32) uint32 {
	var best int
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return uint32(best)
}
