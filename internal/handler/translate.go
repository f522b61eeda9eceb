package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/langtransd/langtrans/internal/audit"
	"github.com/langtransd/langtrans/internal/inference"
	"github.com/langtransd/langtrans/internal/model"
	"github.com/langtransd/langtrans/internal/prompt"
	"github.com/langtransd/langtrans/internal/server/middleware"
)

// Translator runs a generation for an already-built prompt. Satisfied by
// *inference.Engine; tests substitute a stub.
type Translator interface {
	Translate(ctx context.Context, promptText string) (string, error)
}

// TranslateHandler serves the translation endpoint in both its GET (query
// parameters) and POST (JSON body) forms.
type TranslateHandler struct {
	translator Translator
	usage      *audit.Log
	logger     *slog.Logger
}

// NewTranslateHandler creates a TranslateHandler. usage may be nil to skip
// request logging.
func NewTranslateHandler(translator Translator, usage *audit.Log, logger *slog.Logger) *TranslateHandler {
	return &TranslateHandler{translator: translator, usage: usage, logger: logger}
}

// TranslateGET handles GET /api/translate?from=..&to=..&text=..
func (h *TranslateHandler) TranslateGET(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.translate(w, r, model.TranslateRequest{
		From: q.Get("from"),
		To:   q.Get("to"),
		Text: q.Get("text"),
	})
}

// TranslatePOST handles POST /api/translate with a JSON body.
func (h *TranslateHandler) TranslatePOST(w http.ResponseWriter, r *http.Request) {
	var req model.TranslateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	h.translate(w, r, req)
}

// translate is the shared core: validate, build the prompt, run the model,
// answer in plain text.
func (h *TranslateHandler) translate(w http.ResponseWriter, r *http.Request, req model.TranslateRequest) {
	from, err := model.ParseLanguage(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := model.ParseLanguage(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	start := time.Now()
	out, err := h.translator.Translate(r.Context(), prompt.Build(from, to, req.Text))
	status := http.StatusOK
	if err != nil {
		switch {
		case errors.Is(err, inference.ErrInputTooLarge):
			status = http.StatusRequestEntityTooLarge
			writeError(w, status, "input text too large")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Client gave up while the request was queued for the model.
			status = 499
			writeError(w, status, "request cancelled")
		default:
			status = http.StatusInternalServerError
			h.logger.Error("translation failed", "error", err,
				"request_id", middleware.GetRequestID(r.Context()))
			writeError(w, status, "translation failed")
		}
		h.record(r, req, from, to, "", time.Since(start), status)
		return
	}

	h.record(r, req, from, to, out, time.Since(start), status)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// record appends a usage log entry without blocking the response. Failures
// are logged and dropped; the usage log is telemetry, not ledger.
func (h *TranslateHandler) record(r *http.Request, req model.TranslateRequest, from, to model.Language, out string, d time.Duration, status int) {
	if h.usage == nil {
		return
	}
	keyPrefix := ""
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		keyPrefix = p.KeyPrefix
	}
	entry := &audit.Entry{
		KeyPrefix:   keyPrefix,
		FromLang:    string(from),
		ToLang:      string(to),
		InputChars:  utf8.RuneCountInString(req.Text),
		OutputChars: utf8.RuneCountInString(out),
		DurationMs:  d.Milliseconds(),
		Status:      status,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.usage.Record(ctx, entry); err != nil {
			h.logger.Warn("usage log write failed", "error", err)
		}
	}()
}
