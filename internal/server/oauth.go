package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// CodeExchanger trades an authorization code for a token. [services.SpotifyService] implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult is the outcome of one authorization-code callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect target of an authorization-code flow.
//
// Only the first request is processed; its outcome is delivered once on [OAuthHandler.Result].
type OAuthHandler struct {
	exchanger CodeExchanger
	state     string
	path      string
	results   chan OAuthResult
	once      sync.Once
	hit       atomic.Bool
}

// NewOAuthHandler creates a handler serving path (default /callback). state must be unguessable.
func NewOAuthHandler(exchanger CodeExchanger, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		path:      path,
		results:   make(chan OAuthResult, 1),
	}
}

// Routes implements [Handler].
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP checks the state, exchanges the code, and publishes the result.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hit.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(h.state)) != 1 {
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", fmt.Errorf("invalid state parameter"))
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization denied: %s - %s", query.Get("error"), query.Get("error_description"))
		h.fail(w, http.StatusBadRequest, "Authorization failed", err)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "Token exchange failed", fmt.Errorf("token exchange failed: %w", err))
		return
	}

	h.Send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	resultPage.Execute(w, pageData{Title: "Authorization Successful", OK: true})
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, title string, err error) {
	h.Send(OAuthResult{err: err})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	resultPage.Execute(w, pageData{Title: title, Detail: err.Error()})
}

// Send publishes result unless one was already sent.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

type pageData struct {
	Title  string
	Detail string
	OK     bool
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>ptx: {{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
        h1.ok { color: #1DB954; }
        h1.err { color: #D33; }
        p { color: #666; }
    </style>
</head>
<body>
    <div>
        {{if .OK}}<h1 class="ok">✓ {{.Title}}</h1>{{else}}<h1 class="err">✗ {{.Title}}</h1>{{end}}
        <p>{{if .Detail}}{{.Detail}}{{else}}You can close this window and return to the terminal.{{end}}</p>
    </div>
</body>
</html>
`))
