// Package backendtest provides an in-memory REST backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/research-portal/research-portal/internal/models"
)

// Well-known tokens accepted by the server.
const (
	AdminToken  = "admin-token"
	MemberToken = "member-token"
)

// Users returned by /auth/profile for the well-known tokens.
var (
	AdminUser  = models.User{ID: "u-admin", Email: "ana@example.org", FullName: "Ana Admin", Role: models.RoleAdmin}
	MemberUser = models.User{ID: "u-member", Email: "bo@example.org", FullName: "Bo Member", Role: models.RoleMember}
)

// Request is one call the server received.
type Request struct {
	Method string
	Path   string
	Token  string
}

// Server stores each collection as a list of JSON objects. Reads are public;
// writes need AdminToken or MemberToken. Any other bearer token gets 401.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string][]map[string]any
	seq         int
	requests    []Request
	failures    map[string]int
	revoked     map[string]bool
	clock       time.Time
}

// New starts a server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		collections: map[string][]map[string]any{},
		failures:    map[string]int{},
		revoked:     map[string]bool{},
		clock:       time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Seed adds records to collection, assigning ids and creation times when missing.
func (s *Server) Seed(collection string, records ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.collections[collection] = append(s.collections[collection], s.stamp(toMap(r)))
	}
}

// Records returns the raw records of collection.
func (s *Server) Records(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.collections[collection]...)
}

// FailNext makes the next call matching "METHOD /path" answer with status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Revoke makes token answer 401 from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}

// stamp must be called with mu held.
func (s *Server) stamp(m map[string]any) map[string]any {
	s.seq++
	if id, _ := m["id"].(string); id == "" {
		m["id"] = fmt.Sprintf("r%d", s.seq)
	}
	if ts, _ := m["createdAt"].(string); ts == "" {
		m["createdAt"] = s.clock.Add(time.Duration(s.seq) * time.Minute).Format(time.RFC3339)
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Token: token})

	if status, ok := s.failures[r.Method+" "+r.URL.Path]; ok {
		delete(s.failures, r.Method+" "+r.URL.Path)
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	known := token == AdminToken || token == MemberToken
	if token != "" && (!known || s.revoked[token]) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}

	switch r.URL.Path {
	case "/":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	case "/auth/profile":
		switch token {
		case AdminToken:
			writeJSON(w, http.StatusOK, AdminUser)
		case MemberToken:
			writeJSON(w, http.StatusOK, MemberUser)
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
		}
		return
	case "/auth/logout":
		w.WriteHeader(http.StatusNoContent)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	name := parts[0]
	if r.Method != http.MethodGet && token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "login required"})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			list := s.collections[name]
			if list == nil {
				list = []map[string]any{}
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
				return
			}
			delete(body, "id")
			delete(body, "createdAt")
			rec := s.stamp(body)
			s.collections[name] = append(s.collections[name], rec)
			writeJSON(w, http.StatusCreated, rec)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id := parts[1]
	idx := -1
	for i, rec := range s.collections[name] {
		if rec["id"] == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.collections[name][idx])
	case http.MethodPatch:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
			return
		}
		rec := s.collections[name][idx]
		for k, v := range body {
			if k == "id" || k == "createdAt" {
				continue
			}
			rec[k] = v
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		s.collections[name] = append(s.collections[name][:idx], s.collections[name][idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
