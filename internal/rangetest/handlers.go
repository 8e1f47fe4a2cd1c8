package rangetest

import (
	"encoding/json"
	"net/http"

	"github.com/ernie/range-dashboard/internal/domain"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleWebSocket sends a snapshot first, then live frames
func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	snap, err := json.Marshal(s.snapshotLocked())
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.opens.Add(1)
	s.hub.serve(w, req, snap)
}

func (s *Server) handleGetTargets(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"targets": s.targetsLocked()})
}

func (s *Server) handleSelectTarget(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SystemID string `json:"system_id"`
		TargetID string `json:"target_id"`
		Active   bool   `json:"active"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	i := s.findTargetLocked(domain.TargetKey{SystemID: body.SystemID, TargetID: body.TargetID})
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	s.targets[i].Active = domain.Flag(body.Active)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	s.Announce()
}

func (s *Server) handleTargetLED(w http.ResponseWriter, req *http.Request) {
	key := domain.TargetKey{SystemID: req.PathValue("system_id"), TargetID: req.PathValue("target_id")}
	var body struct {
		Color  string `json:"color"`
		TimeMs int    `json:"time_ms"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	i := s.findTargetLocked(key)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	// Clamp like the hardware does
	timeMs := min(max(body.TimeMs, domain.MinLEDTimeMs), domain.MaxLEDTimeMs)
	s.targets[i].LEDColor = body.Color
	s.targets[i].LEDTimeMs = timeMs
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	s.Announce()
}

func (s *Server) handleGetPlayers(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"players": s.playersLocked()})
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(req, &body); err != nil || body.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	s.mu.Lock()
	s.addPlayerLocked(body.Name)
	players := s.playersLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, req *http.Request) {
	id := domain.PlayerID(req.PathValue("id"))

	s.mu.Lock()
	kept := s.players[:0]
	for _, p := range s.players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.players = kept
	delete(s.playerHits, id)
	players := s.playersLocked()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleScoresTargets(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"scores": s.targetScoresLocked()})
}

func (s *Server) handleScoresPlayers(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"scores": s.playerScoresLocked()})
}

func (s *Server) handleStartGame(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Mode      domain.GameMode   `json:"mode"`
		Params    domain.GameParams `json:"params"`
		PlayerIDs []domain.PlayerID `json:"player_ids"`
	}
	if err := decodeBody(req, &body); err != nil || body.Mode == "" {
		writeError(w, http.StatusUnprocessableEntity, "mode is required")
		return
	}

	s.mu.Lock()
	game := &domain.Game{
		ID:        s.nextGameID,
		Mode:      body.Mode,
		Params:    body.Params,
		PlayerIDs: body.PlayerIDs,
		StartedTS: 1,
		Active:    true,
	}
	s.nextGameID++
	s.game = game
	s.targetHits = make(map[domain.TargetKey]int)
	s.playerHits = make(map[domain.PlayerID]int)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"game_id": game.ID, "game": game})
}

func (s *Server) handleStopGame(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	s.game = nil
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"game": nil})
}
