package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	flashCookie = "flash"
	// Cookies are limited to about 4KB.
	maxFlashes = 20
)

const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type flashKey struct{}

// flashes collects the messages queued by one request.
type flashes struct {
	incoming []Flash
	queued   []Flash
}

func flashMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := &flashes{incoming: readFlashCookie(r)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashKey{}, f)))
	})
}

func flashesFrom(r *http.Request) *flashes {
	if f, ok := r.Context().Value(flashKey{}).(*flashes); ok {
		return f
	}
	return &flashes{}
}

func addFlash(r *http.Request, level, message string) {
	f := flashesFrom(r)
	f.queued = append(f.queued, Flash{Level: level, Message: message})
}

// redirect carries pending and queued flashes over to the next request.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if all := pendingFlashes(r); len(all) > 0 {
		writeFlashCookie(w, all)
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// pendingFlashes returns every flash due on the page being rendered.
func pendingFlashes(r *http.Request) []Flash {
	f := flashesFrom(r)
	all := make([]Flash, 0, len(f.incoming)+len(f.queued))
	return append(append(all, f.incoming...), f.queued...)
}

// consumeFlashes clears the flashes once a page showing them has rendered.
func consumeFlashes(w http.ResponseWriter, r *http.Request) {
	f := flashesFrom(r)
	if len(f.incoming) > 0 {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	}
	f.incoming, f.queued = nil, nil
}

// keepFlashes saves the pending flashes for the next request when a page
// could not be rendered.
func keepFlashes(w http.ResponseWriter, r *http.Request) {
	if len(flashesFrom(r).queued) > 0 {
		writeFlashCookie(w, pendingFlashes(r))
	}
}

func readFlashCookie(r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var out []Flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func writeFlashCookie(w http.ResponseWriter, fs []Flash) {
	if len(fs) > maxFlashes {
		hidden := len(fs) - maxFlashes + 1
		fs = append(fs[:maxFlashes-1:maxFlashes-1], Flash{Level: flashInfo, Message: fmt.Sprintf("%d more messages not shown.", hidden)})
	}
	raw, err := json.Marshal(fs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
