// SPDX-License-Identifier: MPL-2.0

// Package nexustest provides an in-memory Nexus staging service for tests.
package nexustest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

type (
	// Upload records one deployed file.
	Upload struct {
		RepositoryID string
		Path         string
		Body         []byte
	}

	// Server is a scripted fake of the staging REST API.
	Server struct {
		*httptest.Server

		mu       sync.Mutex
		opts     options
		nextID   int
		repos    map[string]*repo
		uploads  []Upload
		calls    map[string]int
		auth     []string
		profiles []string
	}

	// Option configures a Server.
	Option func(*options)

	options struct {
		transitionPolls    int
		neverTransition    bool
		closeNotifications int
		uploadStatus       int
		startStatus        int
		dropAfterPromote   bool
	}

	repo struct {
		id            string
		typ           string
		target        string
		transitioning bool
		pending       int
		notifications int
		dropped       bool
		dropOnDone    bool
	}

	repoJSON struct {
		ID            string `json:"repositoryId"`
		ProfileID     string `json:"profileId"`
		Type          string `json:"type"`
		Transitioning bool   `json:"transitioning"`
		Notifications int    `json:"notifications"`
	}
)

// WithTransitionPolls sets how many repository GETs a close or promote stays
// transitioning before completing. The default is 1.
func WithTransitionPolls(n int) Option {
	return func(o *options) { o.transitionPolls = n }
}

// WithNeverTransition keeps every closed or promoted repository
// transitioning forever.
func WithNeverTransition() Option {
	return func(o *options) { o.neverTransition = true }
}

// WithFailingClose makes close validation fail with n notifications; the
// repository returns to open once the transition ends.
func WithFailingClose(n int) Option {
	return func(o *options) { o.closeNotifications = n }
}

// WithUploadStatus makes every upload answer status.
func WithUploadStatus(status int) Option {
	return func(o *options) { o.uploadStatus = status }
}

// WithStartStatus makes every start request answer status.
func WithStartStatus(status int) Option {
	return func(o *options) { o.startStatus = status }
}

// WithDropAfterPromote removes released repositories so that later GETs
// answer 404.
func WithDropAfterPromote() Option {
	return func(o *options) { o.dropAfterPromote = true }
}

// NewServer starts a fake staging service that is closed with the test.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		opts:  options{transitionPolls: 1},
		repos: make(map[string]*repo),
		calls: make(map[string]int),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Uploads returns every recorded upload in arrival order.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// UploadPaths returns the uploaded paths of repositoryID, sorted.
func (s *Server) UploadPaths(repositoryID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, u := range s.uploads {
		if u.RepositoryID == repositoryID {
			out = append(out, u.Path)
		}
	}
	sort.Strings(out)
	return out
}

// Calls returns how many requests of kind were served. Kinds are "start",
// "upload", "close", "promote" and "get".
func (s *Server) Calls(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

// AuthHeaders returns the Authorization header of every request.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

// Profiles returns the profile ids passed to start, in order.
func (s *Server) Profiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.profiles...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth = append(s.auth, r.Header.Get("Authorization"))
	p := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(p, "staging/profiles/") && strings.HasSuffix(p, "/start"):
		s.start(w, strings.TrimSuffix(strings.TrimPrefix(p, "staging/profiles/"), "/start"))
	case r.Method == http.MethodPut && strings.HasPrefix(p, "staging/deployByRepositoryId/"):
		s.upload(w, r, strings.TrimPrefix(p, "staging/deployByRepositoryId/"))
	case r.Method == http.MethodPost && p == "staging/bulk/close":
		s.transition(w, r, "close")
	case r.Method == http.MethodPost && p == "staging/bulk/promote":
		s.transition(w, r, "promote")
	case r.Method == http.MethodGet && strings.HasPrefix(p, "staging/repository/"):
		s.get(w, strings.TrimPrefix(p, "staging/repository/"))
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func (s *Server) start(w http.ResponseWriter, profile string) {
	s.calls["start"]++
	s.profiles = append(s.profiles, profile)
	if s.opts.startStatus != 0 {
		http.Error(w, "start rejected", s.opts.startStatus)
		return
	}
	s.nextID++
	id := fmt.Sprintf("clubminnced-%04d", 1000+s.nextID)
	s.repos[id] = &repo{id: id, typ: "open"}
	writeJSON(w, map[string]any{"data": map[string]string{"stagedRepositoryId": id}})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, rest string) {
	s.calls["upload"]++
	if s.opts.uploadStatus != 0 {
		http.Error(w, "deploy rejected", s.opts.uploadStatus)
		return
	}
	id, filePath, _ := strings.Cut(rest, "/")
	rp, ok := s.repos[id]
	if !ok || rp.dropped || rp.typ != "open" {
		http.Error(w, "repository "+id+" is not open", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.uploads = append(s.uploads, Upload{RepositoryID: id, Path: filePath, Body: body})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, action string) {
	s.calls[action]++

	var req struct {
		Data struct {
			StagedRepositoryIDs []string `json:"stagedRepositoryIds"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data.StagedRepositoryIDs) != 1 {
		http.Error(w, "bad bulk request", http.StatusBadRequest)
		return
	}
	rp, ok := s.repos[req.Data.StagedRepositoryIDs[0]]
	if !ok || rp.dropped {
		http.Error(w, "no such repository", http.StatusNotFound)
		return
	}

	rp.transitioning = true
	rp.pending = s.opts.transitionPolls
	rp.notifications = 0
	switch action {
	case "close":
		rp.target = "closed"
		if s.opts.closeNotifications > 0 {
			rp.target = "open"
		}
	case "promote":
		if rp.typ != "closed" {
			http.Error(w, "repository is not closed", http.StatusBadRequest)
			return
		}
		rp.target = "released"
		rp.dropOnDone = s.opts.dropAfterPromote
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) get(w http.ResponseWriter, id string) {
	s.calls["get"]++
	rp, ok := s.repos[id]
	if !ok || rp.dropped {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if rp.transitioning && !s.opts.neverTransition {
		if rp.pending > 0 {
			rp.pending--
		}
		if rp.pending == 0 {
			rp.transitioning = false
			if rp.target == "open" && s.opts.closeNotifications > 0 {
				rp.notifications = s.opts.closeNotifications
			}
			rp.typ = rp.target
			if rp.dropOnDone {
				rp.dropped = true
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
		}
	}

	writeJSON(w, repoJSON{
		ID:            rp.id,
		Type:          rp.typ,
		Transitioning: rp.transitioning,
		Notifications: rp.notifications,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Test server.
}
