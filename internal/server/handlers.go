package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/ats-analyzer/internal/analysis"
	"github.com/jonathan/ats-analyzer/internal/events"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// keepAliveInterval spaces comments on idle event streams.
const keepAliveInterval = 15 * time.Second

// AnalysisView is the JSON form of one session.
type AnalysisView struct {
	ID string `json:"id"`
	types.AnalysisResponse
}

func view(e *entry) AnalysisView {
	return AnalysisView{ID: e.id, AnalysisResponse: e.ctrl.Snapshot()}
}

// handleCreate starts a new analysis session
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctrl, err := s.deps.NewController()
	if err != nil {
		s.logger.Error("failed to create controller", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	var opts []analysis.RunOption
	if req.ForceRerun {
		opts = append(opts, analysis.WithForceRerun())
	}
	if err := ctrl.PerformAnalysis(r.Context(), req.CVID, req.JDText, opts...); err != nil {
		ctrl.Close()
		s.handleError(w, err)
		return
	}

	e := s.register(ctrl, uuid.NewString())
	s.jsonResponse(w, http.StatusAccepted, view(e))
}

// handleList lists every registered session without results
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]AnalysisView, 0, len(entries))
	for _, e := range entries {
		v := view(e)
		v.Result = nil
		out = append(out, v)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"analyses": out})
}

// handleGet returns state, the (possibly partial) result and error
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view(e))
}

// handleCancel stops a loading analysis
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	e.ctrl.CancelAnalysis()
	s.jsonResponse(w, http.StatusOK, view(e))
}

// handleRefresh re-runs the last analysis of the session
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.handleError(w, err)
		return
	}

	var req types.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	var opts []analysis.RunOption
	if req.ForceRerun {
		opts = append(opts, analysis.WithForceRerun())
	}

	if err := e.ctrl.RefreshAnalysis(r.Context(), opts...); err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, view(e))
}

// handleClear discards the session result and returns it to idle
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	e.ctrl.ClearResults()
	s.jsonResponse(w, http.StatusOK, view(e))
}

// handleEvents streams session events until a terminal state, a clear or a
// client disconnect. The first event is a snapshot of the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.handleError(w, err)
		return
	}

	// Subscribe before the snapshot so no transition falls between them.
	sub := e.ctrl.Subscribe()
	defer sub.Close()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	snapshot := view(e)
	if err := sse.WriteEvent("snapshot", snapshot); err != nil {
		return
	}
	if snapshot.State.IsTerminal() {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := sse.WriteEvent(ev.Phase, ev); err != nil {
				s.logger.Debug("event stream closed", zap.String("id", e.id), zap.Error(err))
				return
			}
			if ev.Terminal() || ev.Phase == events.Cleared {
				return
			}
		case <-keepAlive.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleError maps err to a status and writes it.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}
