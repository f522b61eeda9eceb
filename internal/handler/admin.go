package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/langtransd/langtrans/internal/audit"
	"github.com/langtransd/langtrans/internal/guard"
	"github.com/langtransd/langtrans/internal/keystore"
	"github.com/langtransd/langtrans/internal/session"
	"github.com/langtransd/langtrans/internal/ui"
)

// AdminHandler serves the server-rendered admin console: login, logout, the
// dashboard, and key management.
type AdminHandler struct {
	username string
	password string

	sessions *session.Manager
	keys     *keystore.Store
	guard    *guard.Guard
	usage    *audit.Log
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. usage may be nil; the dashboard
// then shows keys without request statistics.
func NewAdminHandler(username, password string, sessions *session.Manager, keys *keystore.Store, g *guard.Guard, usage *audit.Log, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		username: username,
		password: password,
		sessions: sessions,
		keys:     keys,
		guard:    g,
		usage:    usage,
		logger:   logger,
	}
}

type loginPage struct {
	Error string
}

// LoginForm renders the login page. A browser that already holds a valid
// session is sent straight to the dashboard.
func (h *AdminHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil && h.sessions.Validate(c.Value) == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.render(w, "login.html", loginPage{})
}

// Login checks the submitted credentials. The failure guard is consulted
// before the credentials are looked at, so a locked address learns nothing
// even when it guesses right.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if err := h.guard.Check(ip); err != nil {
		var locked *guard.LockedError
		if errors.As(err, &locked) {
			w.Header().Set("Retry-After", strconv.Itoa(int(locked.RetryAfter.Seconds())+1))
			h.logger.Warn("login blocked", "ip", ip, "retry_after", locked.RetryAfter)
			h.renderStatus(w, http.StatusForbidden, loginPage{Error: locked.Error()})
			return
		}
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(r.PostFormValue("username")), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(r.PostFormValue("password")), []byte(h.password)) == 1
	if !userOK || !passOK {
		h.guard.RecordFailure(ip)
		h.logger.Warn("login failed", "ip", ip, "failures", h.guard.Failures(ip))
		h.renderStatus(w, http.StatusUnauthorized, loginPage{Error: "Invalid username or password."})
		return
	}

	h.guard.RecordSuccess(ip)
	token, err := h.sessions.Issue()
	if err != nil {
		h.logger.Error("session issue failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessions.TTL().Seconds()),
	})
	h.logger.Info("admin logged in", "ip", ip)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session server-side and clears the cookie.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		h.sessions.Destroy(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type keyRow struct {
	Prefix   string
	Label    string
	Created  string
	Expires  string
	Status   string
	Active   bool
	Requests int64
	LastUsed string
}

type requestRow struct {
	Time        string
	KeyPrefix   string
	From        string
	To          string
	InputChars  int
	OutputChars int
	DurationMs  int64
	Status      int
}

type dashboardPage struct {
	NewKey string
	Keys   []keyRow
	Recent []requestRow
}

// Dashboard renders the key list with usage statistics and the recent
// request log.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, "dashboard.html", h.dashboardData(r.Context(), r.URL.Query().Get("new_key")))
}

// CreateKey handles the create-key form. The full secret is carried to the
// dashboard redirect once and never rendered again.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	label := r.PostFormValue("label")
	if label == "" {
		http.Error(w, "label is required", http.StatusBadRequest)
		return
	}
	days, _ := strconv.Atoi(r.PostFormValue("expires_days"))
	var ttl time.Duration
	if days > 0 {
		ttl = time.Duration(days) * 24 * time.Hour
	}

	key, err := h.keys.Create(label, ttl)
	if err != nil {
		h.logger.Error("key create failed", "error", err)
		http.Error(w, "could not create key", http.StatusInternalServerError)
		return
	}
	h.logger.Info("api key created", "prefix", key.Prefix(), "label", label)
	http.Redirect(w, r, "/dashboard?new_key="+key.Key, http.StatusSeeOther)
}

// RevokeKey handles the revoke form. The form carries only the key prefix;
// the full secret is never rendered back to the browser after creation.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	prefix := r.PostFormValue("prefix")
	changed, err := h.keys.RevokeByPrefix(prefix)
	if err != nil && !errors.Is(err, keystore.ErrKeyNotFound) {
		h.logger.Error("key revoke failed", "prefix", prefix, "error", err)
		http.Error(w, "could not revoke key", http.StatusInternalServerError)
		return
	}
	if changed {
		h.logger.Info("api key revoked", "prefix", prefix)
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AdminHandler) dashboardData(ctx context.Context, newKey string) dashboardPage {
	page := dashboardPage{NewKey: newKey}

	var usageByKey map[string]audit.KeyUsage
	if h.usage != nil {
		var err error
		usageByKey, err = h.usage.UsageByKey(ctx)
		if err != nil {
			h.logger.Warn("usage aggregation failed", "error", err)
		}
		recent, err := h.usage.Recent(ctx, 20)
		if err != nil {
			h.logger.Warn("usage listing failed", "error", err)
		}
		for _, e := range recent {
			page.Recent = append(page.Recent, requestRow{
				Time:        e.CreatedAt.Format("2006-01-02 15:04:05"),
				KeyPrefix:   e.KeyPrefix,
				From:        e.FromLang,
				To:          e.ToLang,
				InputChars:  e.InputChars,
				OutputChars: e.OutputChars,
				DurationMs:  e.DurationMs,
				Status:      e.Status,
			})
		}
	}

	now := time.Now()
	for _, k := range h.keys.List() {
		row := keyRow{
			Prefix:  k.Prefix(),
			Label:   k.Label,
			Created: k.CreatedAt.Format("2006-01-02"),
			Expires: "never",
			Active:  k.Usable(now),
		}
		if k.ExpiresAt != nil {
			row.Expires = k.ExpiresAt.Format("2006-01-02")
		}
		switch {
		case k.Revoked:
			row.Status = "revoked"
		case k.Expired(now):
			row.Status = "expired"
		default:
			row.Status = "active"
		}
		if u, ok := usageByKey[k.Prefix()]; ok {
			row.Requests = u.Requests
			row.LastUsed = u.LastUsed.Format("2006-01-02 15:04")
		}
		page.Keys = append(page.Keys, row)
	}
	return page
}

func (h *AdminHandler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.Templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("template render failed", "template", name, "error", err)
	}
}

// renderStatus renders the login page with a non-200 status.
func (h *AdminHandler) renderStatus(w http.ResponseWriter, status int, data loginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := ui.Templates.ExecuteTemplate(w, "login.html", data); err != nil {
		h.logger.Error("template render failed", "template", "login.html", "error", err)
	}
}

// clientIP prefers the RealIP-resolved RemoteAddr and strips the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
