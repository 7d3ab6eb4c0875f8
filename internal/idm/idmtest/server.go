// Package idmtest provides an in-memory IDM and token endpoint for tests.
package idmtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/pkg/constants"
)

// StaticToken is always accepted unless ExpireTokens or RejectTokens is used.
const StaticToken = "static-test-token"

// Request records a call the server received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Server is a fake IDM tenant. It serves /openidm/recon,
// /openidm/recon/assoc/{id}/entry, /openidm/repo/link and the
// /am/oauth2/access_token endpoint.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	recons        []idm.ReconciliationRun
	entries       map[string][]idm.ReconEntry
	links         []idm.LinkRecord
	pageSize      int
	alwaysCookie  bool
	tokens        map[string]bool
	issued        int
	rejectTokens  bool
	raced         map[string]bool
	requests      []Request
	deleteCalls   int
	tokenRequests int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		entries: make(map[string][]idm.ReconEntry),
		tokens:  map[string]bool{StaticToken: true},
		raced:   make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+constants.TokenPath, s.handleToken)
	mux.HandleFunc("GET "+constants.IDMPath+"/recon", s.authorized(s.handleRecons))
	mux.HandleFunc("GET "+constants.IDMPath+"/recon/assoc/{id}/entry", s.authorized(s.handleEntries))
	mux.HandleFunc("GET "+constants.IDMPath+"/repo/link", s.authorized(s.handleLinkQuery))
	mux.HandleFunc("DELETE "+constants.IDMPath+"/repo/link/{id}", s.authorized(s.handleLinkDelete))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// IDMURL is the base URL for transport.New.
func (s *Server) IDMURL() string { return s.URL + constants.IDMPath }

// TokenURL is the token endpoint URL.
func (s *Server) TokenURL() string { return s.URL + constants.TokenPath }

// AddRecon registers a reconciliation run.
func (s *Server) AddRecon(run idm.ReconciliationRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recons = append(s.recons, run)
}

// AddEntries appends association entries to a run.
func (s *Server) AddEntries(runID string, entries ...idm.ReconEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[runID] = append(s.entries[runID], entries...)
}

// AddLink stores a link. An empty revision defaults to "1".
func (s *Server) AddLink(link idm.LinkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link.Rev == "" {
		link.Rev = "1"
	}
	s.links = append(s.links, link)
}

// BumpRevision simulates a concurrent update of a link after it was read.
func (s *Server) BumpRevision(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked(id)
}

func (s *Server) bumpLocked(id string) {
	for i := range s.links {
		if s.links[i].ID == id {
			n, _ := strconv.Atoi(s.links[i].Rev)
			s.links[i].Rev = strconv.Itoa(n + 1)
		}
	}
}

// RaceDelete makes another writer update link id just before the next delete
// of it arrives, so a revision read earlier is stale.
func (s *Server) RaceDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raced[id] = true
}

// SetPageSize caps the number of entries per page regardless of _pageSize.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetAlwaysCookie makes every entry page carry a cookie, so paging only ends
// on an empty page.
func (s *Server) SetAlwaysCookie(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alwaysCookie = v
}

// ExpireTokens invalidates every token issued so far, including StaticToken.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// RejectTokens makes every IDM request answer 401.
func (s *Server) RejectTokens(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectTokens = v
}

// Links returns a copy of the stored links.
func (s *Server) Links() []idm.LinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]idm.LinkRecord(nil), s.links...)
}

// Requests returns the IDM requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// DeleteCalls returns the number of DELETE requests received.
func (s *Server) DeleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCalls
}

// TokenRequests returns the number of token exchanges.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if r.PostForm.Get("grant_type") != constants.GrantTypeJWTBearer || r.PostForm.Get("assertion") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "jwt-bearer assertion required",
		})
		return
	}

	s.mu.Lock()
	s.tokenRequests++
	s.issued++
	token := "issued-" + strconv.Itoa(s.issued)
	s.tokens[token] = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   899,
		"scope":        r.PostForm.Get("scope"),
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get(constants.HeaderAuthorization), "Bearer ")

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		ok := !s.rejectTokens && s.tokens[token]
		s.mu.Unlock()

		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Access Denied")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRecons(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"reconciliations": s.recons})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	q := r.URL.Query()

	field, value, ok := idm.ParseEqualsFilter(q.Get("_queryFilter"))
	if !ok || field != "situation" {
		writeError(w, http.StatusBadRequest, "Bad Request", "unsupported filter")
		return
	}
	size, err := strconv.Atoi(q.Get("_pageSize"))
	if err != nil || size <= 0 {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid _pageSize")
		return
	}
	offset := 0
	if cookie := q.Get("_pagedResultsCookie"); cookie != "" {
		if offset, err = strconv.Atoi(cookie); err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", "invalid cookie")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.entries[runID]; !known && !s.hasRecon(runID) {
		writeError(w, http.StatusNotFound, "Not Found", "recon "+runID+" not found")
		return
	}
	var matched []idm.ReconEntry
	for _, e := range s.entries[runID] {
		if e.Situation == value {
			matched = append(matched, e)
		}
	}
	if s.pageSize > 0 && s.pageSize < size {
		size = s.pageSize
	}

	page := idm.QueryResult[idm.ReconEntry]{Result: []idm.ReconEntry{}}
	if offset < len(matched) {
		end := min(offset+size, len(matched))
		page.Result = matched[offset:end]
		if end < len(matched) || s.alwaysCookie {
			page.PagedResultsCookie = strconv.Itoa(end)
		}
	} else if s.alwaysCookie {
		page.PagedResultsCookie = strconv.Itoa(offset)
	}
	page.ResultCount = len(page.Result)
	page.RemainingPagedResults = -1
	page.TotalPagedResultsPolicy = "NONE"
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) hasRecon(id string) bool {
	for _, r := range s.recons {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleLinkQuery(w http.ResponseWriter, r *http.Request) {
	field, value, ok := idm.ParseEqualsFilter(r.URL.Query().Get("_queryFilter"))
	if !ok || (field != "firstId" && field != "secondId") {
		writeError(w, http.StatusBadRequest, "Bad Request", "unsupported filter")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := idm.QueryResult[idm.LinkRecord]{Result: []idm.LinkRecord{}}
	for _, l := range s.links {
		if (field == "firstId" && l.FirstID == value) || (field == "secondId" && l.SecondID == value) {
			result.Result = append(result.Result, l)
		}
	}
	result.ResultCount = len(result.Result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLinkDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rev := r.Header.Get(constants.HeaderIfMatch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++

	if s.raced[id] {
		delete(s.raced, id)
		s.bumpLocked(id)
	}
	for i, l := range s.links {
		if l.ID != id {
			continue
		}
		if rev != "" && rev != "*" && rev != l.Rev {
			writeError(w, http.StatusPreconditionFailed, "Precondition Failed", "revision mismatch")
			return
		}
		s.links = append(s.links[:i], s.links[i+1:]...)
		writeJSON(w, http.StatusOK, l)
		return
	}
	writeError(w, http.StatusNotFound, "Not Found", "link "+id+" not found")
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{"code": status, "reason": reason, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
