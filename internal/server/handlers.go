package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	snap, err := s.svc.Snapshot(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeOK(w, snap)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	series, err := s.svc.Candles(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeOK(w, series)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	enrich, _ := strconv.ParseBool(r.URL.Query().Get("enrich"))
	news, err := s.svc.News(r.Context(), symbol, enrich)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeOK(w, news)
}

type compareRequest struct {
	SymbolA string `json:"symbol_a"`
	SymbolB string `json:"symbol_b"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.SymbolA) == "" || strings.TrimSpace(req.SymbolB) == "" {
		writeJSON(w, http.StatusBadRequest, "both symbol_a and symbol_b are required", nil)
		return
	}

	cmp, err := s.svc.Compare(r.Context(), req.SymbolA, req.SymbolB)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeOK(w, cmp)
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid comparison id", nil)
		return
	}
	cmp, err := s.svc.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, cmp)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.svc.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, list)
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	ComparisonID int64  `json:"comparison_id"`
	Reply        string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid comparison id", nil)
		return
	}
	s.chat(w, r, id)
}

// handleChatCurrent chats against the active comparison.
func (s *Server) handleChatCurrent(w http.ResponseWriter, r *http.Request) {
	s.chat(w, r, 0)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, id int64) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, "question is required", nil)
		return
	}

	cmp, reply, err := s.svc.Chat(r.Context(), id, req.Question)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeOK(w, chatResponse{ComparisonID: cmp.ID, Reply: reply})
}
