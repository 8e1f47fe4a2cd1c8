// Package rangetest runs an in-process range server speaking the
// dashboard's push and command protocol, for tests.
package rangetest

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ernie/range-dashboard/internal/domain"
)

// Request is one command received by the server
type Request struct {
	Method string
	Path   string
	Body   string
}

type failure struct {
	status int
	body   string
}

// Server is a fake range server backed by httptest
type Server struct {
	*httptest.Server

	mux    *http.ServeMux
	hub    *hub
	logger *log.Logger
	opens  atomic.Int64

	mu           sync.Mutex
	targets      []domain.Target
	players      []domain.Player
	nextPlayerID int64
	nextGameID   int64
	targetHits   map[domain.TargetKey]int
	playerHits   map[domain.PlayerID]int
	game         *domain.Game
	requests     []Request
	failures     map[string]failure
}

// New starts a server with no targets, players or game
func New() *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       log.New(io.Discard, "", 0),
		nextPlayerID: 1,
		nextGameID:   1,
		targetHits:   make(map[domain.TargetKey]int),
		playerHits:   make(map[domain.PlayerID]int),
		failures:     make(map[string]failure),
	}
	s.hub = newHub(s.logger)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux.HandleFunc("GET /api/targets", s.handleGetTargets)
	s.mux.HandleFunc("POST /api/targets/select", s.handleSelectTarget)
	s.mux.HandleFunc("POST /api/targets/{system_id}/{target_id}/led", s.handleTargetLED)

	s.mux.HandleFunc("GET /api/players", s.handleGetPlayers)
	s.mux.HandleFunc("POST /api/players", s.handleAddPlayer)
	s.mux.HandleFunc("DELETE /api/players/{id}", s.handleDeletePlayer)

	s.mux.HandleFunc("GET /api/scores/targets", s.handleScoresTargets)
	s.mux.HandleFunc("GET /api/scores/players", s.handleScoresPlayers)

	s.mux.HandleFunc("POST /api/games/start", s.handleStartGame)
	s.mux.HandleFunc("POST /api/games/stop", s.handleStopGame)

	go s.hub.run()
	s.Server = httptest.NewServer(s)
	return s
}

// Close stops the hub and the HTTP server
func (s *Server) Close() {
	close(s.hub.done)
	s.Server.Close()
}

// ServeHTTP records commands and applies injected failures before routing
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/ws" {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: req.Method, Path: req.URL.Path, Body: string(body)})
		key := req.Method + " " + req.URL.Path
		f, fail := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			io.WriteString(w, f.body)
			return
		}
	}
	s.mux.ServeHTTP(w, req)
}

// FailNext makes the next request to method+path answer with status and body
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	s.failures[method+" "+path] = failure{status: status, body: body}
	s.mu.Unlock()
}

// Requests returns the commands received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Opens returns the number of WebSocket connections accepted
func (s *Server) Opens() int { return int(s.opens.Load()) }

// Clients returns the number of connected dashboards
func (s *Server) Clients() int { return s.hub.count() }

// WaitForClients polls until n dashboards are connected
func (s *Server) WaitForClients(n int, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if s.Clients() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Clients() == n
}

// SetTargets replaces the target list without broadcasting
func (s *Server) SetTargets(targets ...domain.Target) {
	s.mu.Lock()
	s.targets = append([]domain.Target(nil), targets...)
	s.sortTargetsLocked()
	s.mu.Unlock()
}

// Announce broadcasts the current target list
func (s *Server) Announce() {
	s.mu.Lock()
	msg := map[string]any{"type": domain.MessageAnnounce, "targets": s.targetsLocked()}
	s.mu.Unlock()
	s.hub.publishJSON(msg)
}

// Hit records a hit on key and broadcasts refreshed scores. A non-empty
// player id credits that player.
func (s *Server) Hit(key domain.TargetKey, player domain.PlayerID) {
	s.mu.Lock()
	s.targetHits[key]++
	if player != "" {
		s.playerHits[player]++
	}
	msg := map[string]any{
		"type":           domain.MessageHit,
		"system_id":      key.SystemID,
		"target_id":      key.TargetID,
		"scores_targets": s.targetScoresLocked(),
		"scores_players": s.playerScoresLocked(),
	}
	s.mu.Unlock()
	s.hub.publishJSON(msg)
}

// SendRaw broadcasts an arbitrary text frame
func (s *Server) SendRaw(frame string) {
	s.hub.publish([]byte(frame))
}

// DropClients severs every WebSocket connection abruptly
func (s *Server) DropClients() {
	s.hub.dropAll()
}

func (s *Server) snapshotLocked() map[string]any {
	return map[string]any{
		"type":           domain.MessageSnapshot,
		"targets":        s.targetsLocked(),
		"players":        s.playersLocked(),
		"scores_targets": s.targetScoresLocked(),
		"scores_players": s.playerScoresLocked(),
		"game":           s.game,
	}
}

func (s *Server) targetsLocked() []domain.Target {
	return append([]domain.Target{}, s.targets...)
}

func (s *Server) playersLocked() []domain.Player {
	return append([]domain.Player{}, s.players...)
}

func (s *Server) sortTargetsLocked() {
	sort.Slice(s.targets, func(i, j int) bool {
		if s.targets[i].SystemID != s.targets[j].SystemID {
			return s.targets[i].SystemID < s.targets[j].SystemID
		}
		return s.targets[i].TargetID < s.targets[j].TargetID
	})
}

func (s *Server) targetScoresLocked() []domain.TargetScore {
	scores := []domain.TargetScore{}
	for key, hits := range s.targetHits {
		scores = append(scores, domain.TargetScore{SystemID: key.SystemID, TargetID: key.TargetID, Hits: hits})
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Key().String() < scores[j].Key().String()
	})
	return scores
}

func (s *Server) playerScoresLocked() []domain.PlayerScore {
	scores := []domain.PlayerScore{}
	for _, p := range s.players {
		scores = append(scores, domain.PlayerScore{PlayerID: p.ID, Name: p.Name, Hits: s.playerHits[p.ID]})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Hits > scores[j].Hits })
	return scores
}

func (s *Server) findTargetLocked(key domain.TargetKey) int {
	for i, t := range s.targets {
		if t.Key() == key {
			return i
		}
	}
	return -1
}

func (s *Server) addPlayerLocked(name string) {
	for _, p := range s.players {
		if p.Name == name {
			return
		}
	}
	id := domain.PlayerID(strconv.FormatInt(s.nextPlayerID, 10))
	s.nextPlayerID++
	s.players = append(s.players, domain.Player{ID: id, Name: name, CreatedAt: float64(time.Now().Unix())})
	sort.Slice(s.players, func(i, j int) bool { return s.players[i].Name < s.players[j].Name })
}

func decodeBody(req *http.Request, v any) error {
	return json.NewDecoder(req.Body).Decode(v)
}
