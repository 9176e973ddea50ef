// Package webservice implements ccl.Facility over an HTTP endpoint that
// executes CCL programs, for use outside the embedded browser shell.
//
// A call to program P with body B becomes
//
//	GET {BaseURL}/P?parameters=B
//
// and the HTTP status is reported as the request status.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/msto63/cclbridge/pkg/ccl"
	"github.com/msto63/cclbridge/pkg/core/logging"
)

const maxStatusTextLen = 512

var (
	errNoBaseURL       = errors.New("webservice: base URL is required")
	errSyncUnsupported = errors.New("webservice: synchronous requests are not supported")
	errNotOpened       = errors.New("webservice: send before open")
	errAlreadySent     = errors.New("webservice: request already sent")
)

// Config holds facility configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Name    string

	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Timeout: 60 * time.Second,
		Name:    "XMLCclRequest",
	}
}

// Facility executes programs through the web service
type Facility struct {
	baseURL string
	token   string
	name    string
	client  *http.Client
	logger  *logging.Logger
}

// New creates a facility. Callers without a base URL have no facility and
// should hand a nil ccl.Facility to the adapter instead.
func New(cfg Config) (*Facility, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errNoBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webservice: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Facility{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		name:    cfg.Name,
		client:  client,
		logger:  logging.New("ccl-webservice"),
	}, nil
}

// Name implements ccl.Facility
func (f *Facility) Name() string {
	return f.name
}

// NewRequest implements ccl.Facility
func (f *Facility) NewRequest() ccl.Request {
	return &request{facility: f}
}

func (f *Facility) programURL(program, body string) string {
	return f.baseURL + "/" + url.PathEscape(program) + "?parameters=" + url.QueryEscape(body)
}

type request struct {
	facility *Facility

	mu         sync.Mutex
	method     string
	target     string
	opened     bool
	sent       bool
	state      ccl.ReadyState
	status     ccl.StatusCode
	statusText string
	response   string
	observer   func()
}

func (r *request) Open(method, target string, async bool) error {
	if !async {
		return errSyncUnsupported
	}
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return fmt.Errorf("webservice: unsupported method %q", method)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.method, r.target, r.opened = method, target, true
	return nil
}

func (r *request) Send(body string) error {
	r.mu.Lock()
	if !r.opened {
		r.mu.Unlock()
		return errNotOpened
	}
	if r.sent {
		r.mu.Unlock()
		return errAlreadySent
	}
	r.sent = true
	method, target := r.method, r.target
	r.mu.Unlock()

	go r.run(method, target, body)
	return nil
}

func (r *request) run(method, target, body string) {
	f := r.facility
	start := time.Now()
	r.transition(ccl.ReadyStateLoading)

	req, err := http.NewRequestWithContext(context.Background(), method, f.programURL(target, body), nil)
	if err != nil {
		r.complete(ccl.StatusInternalServerException, err.Error(), "")
		return
	}
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("web service call failed", "program", target, "error", err, "duration", time.Since(start))
		r.complete(ccl.StatusInternalServerException, err.Error(), "")
		return
	}
	defer resp.Body.Close()
	r.transition(ccl.ReadyStateLoaded)

	data, err := io.ReadAll(resp.Body)
	r.transition(ccl.ReadyStateInteractive)
	if err != nil {
		r.complete(ccl.StatusInternalServerException, "read response: "+err.Error(), "")
		return
	}

	f.logger.Debug("web service call completed",
		"program", target,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusOK {
		r.complete(ccl.StatusSuccess, http.StatusText(resp.StatusCode), string(data))
		return
	}
	r.complete(ccl.StatusCode(resp.StatusCode), statusText(resp.StatusCode, data), string(data))
}

// statusText prefers the server's own message over the reason phrase
func statusText(code int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(code)
	}
	if len(text) > maxStatusTextLen {
		text = text[:maxStatusTextLen]
	}
	return text
}

func (r *request) transition(state ccl.ReadyState) {
	r.mu.Lock()
	r.state = state
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer()
	}
}

func (r *request) complete(status ccl.StatusCode, text, body string) {
	r.mu.Lock()
	r.status, r.statusText, r.response = status, text, body
	r.mu.Unlock()
	r.transition(ccl.ReadyStateCompleted)
}

func (r *request) OnReadyStateChange(fn func()) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

func (r *request) ReadyState() ccl.ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *request) Status() ccl.StatusCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusText
}

func (r *request) ResponseText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}
