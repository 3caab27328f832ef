// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package jellyfin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// MockServer is an in-memory Jellyfin used by tests across packages. It
// implements only the endpoints Client calls.
type MockServer struct {
	Server *httptest.Server
	APIKey string

	mu        sync.Mutex
	users     map[string]*User
	passwords map[string]string
	sessions  []Session
	failures  map[string]int // "METHOD /path-prefix" -> status
	nextID    atomic.Int64
	requests  atomic.Int64
}

// NewMockServer starts a mock server that accepts apiKey.
func NewMockServer(apiKey string) *MockServer {
	m := &MockServer{
		APIKey:    apiKey,
		users:     make(map[string]*User),
		passwords: make(map[string]string),
		failures:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(m.count, m.injectFailures)
	r.Get("/System/Info/Public", m.handleSystemInfo)
	r.Group(func(r chi.Router) {
		r.Use(m.requireKey)
		r.Get("/Users", m.handleListUsers)
		r.Post("/Users/New", m.handleCreateUser)
		r.Get("/Users/{id}", m.handleGetUser)
		r.Delete("/Users/{id}", m.handleDeleteUser)
		r.Post("/Users/{id}/Policy", m.handlePolicy)
		r.Post("/Users/{id}/Password", m.handlePassword)
		r.Get("/Sessions", m.handleSessions)
	})

	m.Server = httptest.NewServer(r)
	return m
}

// URL returns the base URL.
func (m *MockServer) URL() string { return m.Server.URL }

// Close shuts the server down.
func (m *MockServer) Close() { m.Server.Close() }

// Requests returns how many requests were received.
func (m *MockServer) Requests() int64 { return m.requests.Load() }

// AddUser seeds a user and returns its ID.
func (m *MockServer) AddUser(name, password string, policy Policy) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addUserLocked(name, password, policy)
}

func (m *MockServer) addUserLocked(name, password string, policy Policy) string {
	id := fmt.Sprintf("user-%04d", m.nextID.Add(1))
	if policy == nil {
		policy = Policy{
			"IsAdministrator":          false,
			"IsDisabled":               false,
			"EnableContentDownloading": true,
			"EnableRemoteAccess":       true,
			"AuthenticationProviderId": "Jellyfin.Server.Implementations.Users.DefaultAuthenticationProvider",
		}
	}
	m.users[id] = &User{ID: id, Name: name, HasPassword: password != "", Policy: policy}
	m.passwords[id] = password
	return id
}

// User returns a copy of the stored user, or nil.
func (m *MockServer) User(id string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	cp.Policy = PolicyUpdate{}.ApplyTo(u.Policy)
	return &cp
}

// UserByName returns a copy of the user with this name, or nil.
func (m *MockServer) UserByName(name string) *User {
	m.mu.Lock()
	var id string
	for k, u := range m.users {
		if strings.EqualFold(u.Name, name) {
			id = k
		}
	}
	m.mu.Unlock()
	if id == "" {
		return nil
	}
	return m.User(id)
}

// Password returns the stored password for id.
func (m *MockServer) Password(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[id]
}

// SetSessions replaces the /Sessions response.
func (m *MockServer) SetSessions(sessions []Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
}

// FailRequests makes requests matching method and path prefix answer with
// status. A status of 0 removes the rule.
func (m *MockServer) FailRequests(method, pathPrefix string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + pathPrefix
	if status == 0 {
		delete(m.failures, key)
		return
	}
	m.failures[key] = status
}

func (m *MockServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (m *MockServer) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status := 0
		for key, code := range m.failures {
			method, prefix, _ := strings.Cut(key, " ")
			if method == r.Method && strings.HasPrefix(r.URL.Path, prefix) {
				status = code
				break
			}
		}
		m.mu.Unlock()
		if status != 0 {
			http.Error(w, "injected failure", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockServer) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != m.APIKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeMockJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *MockServer) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	writeMockJSON(w, http.StatusOK, SystemInfo{ServerName: "mock", Version: "10.10.0", ID: "mock-server"})
}

func (m *MockServer) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeMockJSON(w, http.StatusOK, out)
}

func (m *MockServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	for _, u := range m.users {
		if strings.EqualFold(u.Name, req.Name) {
			m.mu.Unlock()
			http.Error(w, "A user with the name '"+req.Name+"' already exists.", http.StatusBadRequest)
			return
		}
	}
	id := m.addUserLocked(req.Name, req.Password, nil)
	u := *m.users[id]
	m.mu.Unlock()

	writeMockJSON(w, http.StatusOK, u)
}

func (m *MockServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if u := m.User(chi.URLParam(r, "id")); u != nil {
		writeMockJSON(w, http.StatusOK, u)
		return
	}
	http.NotFound(w, r)
}

func (m *MockServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m.mu.Lock()
	_, ok := m.users[id]
	delete(m.users, id)
	delete(m.passwords, id)
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handlePolicy(w http.ResponseWriter, r *http.Request) {
	var policy Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	m.mu.Lock()
	u, ok := m.users[id]
	if ok {
		u.Policy = policy
	}
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handlePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	m.mu.Lock()
	u, ok := m.users[id]
	if ok {
		switch {
		case req.ResetPassword:
			m.passwords[id] = ""
			u.HasPassword = false
		case req.NewPw != "":
			m.passwords[id] = req.NewPw
			u.HasPassword = true
		}
	}
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	out := append([]Session{}, m.sessions...)
	m.mu.Unlock()
	writeMockJSON(w, http.StatusOK, out)
}
