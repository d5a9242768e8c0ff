/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pg-auto-ha/pgautoctl/internal/fsm"
	"github.com/pg-auto-ha/pgautoctl/internal/log"
	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/monitor"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// Server implements the monitor's HTTP API over an Orchestrator. It embeds
// a plain http.ServeMux — the teacher's own instance-manager webserver is a
// bare net/http.Server with hand-registered routes, not a third-party
// router, so this surface follows the same shape.
type Server struct {
	mux *http.ServeMux
	o   *monitor.Orchestrator
}

// NewServer builds the monitor's HTTP handler over the given orchestrator.
func NewServer(o *monitor.Orchestrator) *Server {
	s := &Server{mux: http.NewServeMux(), o: o}
	s.mux.HandleFunc("/api/v1/register", s.handleRegister)
	s.mux.HandleFunc("/api/v1/nodes/", s.handleNodeRoutes)
	s.mux.HandleFunc("/api/v1/formations/", s.handleFormationRoutes)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorKindInternal, "method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorKindInternal, err.Error())
		return
	}

	logger := log.FromContext(r.Context()).WithValues("requestId", req.RequestID, "name", req.Name)
	logger.Info("register request received")

	n, err := s.o.Register(r.Context(), monitor.RegisterRequest{
		Formation:   req.Formation,
		GroupID:     req.GroupID,
		Host:        req.Host,
		Port:        req.Port,
		Name:        req.Name,
		NodeKind:    model.FormationKind(req.NodeKind),
		DesiredRole: req.DesiredRole,
	})
	if err != nil {
		writeRegisterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{
		NodeID:       n.NodeID,
		GroupID:      n.GroupID,
		AssignedRole: n.AssignedRole,
	})
}

// handleNodeRoutes dispatches /api/v1/nodes/{id}/active, /others, and the
// plain /api/v1/nodes/{id} drop route.
func (s *Server) handleNodeRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/nodes/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, ErrorKindInternal, "missing node id")
		return
	}

	nodeID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorKindInternal, "invalid node id")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "active":
		s.handleNodeActive(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "others":
		s.handleGetOtherNodes(w, r, nodeID)
	case len(parts) == 2 && parts[1] == "maintenance" && r.Method == http.MethodPut:
		s.handleSetMaintenance(w, r, nodeID, true)
	case len(parts) == 2 && parts[1] == "maintenance" && r.Method == http.MethodDelete:
		s.handleSetMaintenance(w, r, nodeID, false)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleRemoveNode(w, r, nodeID)
	default:
		writeError(w, http.StatusNotFound, ErrorKindInternal, "unknown route")
	}
}

func (s *Server) handleSetMaintenance(w http.ResponseWriter, r *http.Request, nodeID int64, enable bool) {
	var err error
	if enable {
		err = s.o.EnableMaintenance(r.Context(), nodeID)
	} else {
		err = s.o.DisableMaintenance(r.Context(), nodeID)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ErrorKindFSMViolation, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleNodeActive(w http.ResponseWriter, r *http.Request, nodeID int64) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorKindInternal, err.Error())
		return
	}

	resp, err := s.o.NodeActive(r.Context(), monitor.HeartbeatRequest{
		NodeID:      nodeID,
		GroupID:     req.GroupID,
		CurrentRole: req.CurrentRole,
		PgIsRunning: req.PgIsRunning,
		CurrentLSN:  pg.LSN(req.CurrentLSN),
		SyncState:   req.SyncState,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrorKindUnknownNode, err.Error())
			return
		}
		writeError(w, http.StatusConflict, ErrorKindStaleGroup, err.Error())
		return
	}

	wireResp := HeartbeatResponse{
		AssignedRole: resp.AssignedRole,
		NodeID:       resp.NodeID,
		GroupID:      resp.GroupID,
	}
	if resp.FastForwardFrom != nil {
		addr := nodeToAddress(*resp.FastForwardFrom)
		wireResp.FastForwardFrom = &addr
	}
	writeJSON(w, http.StatusOK, wireResp)
}

func (s *Server) handleGetOtherNodes(w http.ResponseWriter, r *http.Request, nodeID int64) {
	var filter *fsm.Role
	if v := r.URL.Query().Get("state"); v != "" {
		role := fsm.Role(v)
		filter = &role
	}

	nodes, err := s.o.GetOtherNodes(r.Context(), nodeID, filter)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrorKindUnknownNode, err.Error())
		return
	}

	resp := GetOtherNodesResponse{Nodes: make([]NodeAddress, 0, len(nodes))}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, nodeToAddress(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request, nodeID int64) {
	if err := s.o.RemoveNode(r.Context(), nodeID); err != nil {
		writeError(w, http.StatusNotFound, ErrorKindUnknownNode, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleFormationRoutes dispatches /api/v1/formations/{name}/groups/{id}/primary,
// /settings, and /events.
func (s *Server) handleFormationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/formations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, ErrorKindInternal, "missing formation name")
		return
	}
	formation := parts[0]
	logger := log.FromContext(r.Context())

	switch {
	case len(parts) == 4 && parts[1] == "groups" && parts[3] == "primary":
		groupID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorKindInternal, "invalid group id")
			return
		}
		n, ok, err := s.o.GetPrimary(r.Context(), formation, groupID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrorKindInternal, err.Error())
			return
		}
		resp := GetPrimaryResponse{Found: ok}
		if ok {
			addr := nodeToAddress(n)
			resp.Node = &addr
		}
		writeJSON(w, http.StatusOK, resp)

	case len(parts) == 2 && parts[1] == "settings" && r.Method == http.MethodPut:
		var req SetGroupSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrorKindInternal, err.Error())
			return
		}
		if err := s.o.SetGroupSettings(r.Context(), formation, req.NumberSyncStandbys); err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrorKindInvariant, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})

	case len(parts) == 4 && parts[1] == "groups" && parts[3] == "nodes":
		groupID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorKindInternal, "invalid group id")
			return
		}
		nodes, err := s.o.Store.ListNodes(r.Context(), formation, groupID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrorKindInternal, err.Error())
			return
		}
		resp := ListNodesResponse{Nodes: make([]NodeAddress, 0, len(nodes))}
		for _, n := range nodes {
			resp.Nodes = append(resp.Nodes, nodeToAddress(n))
		}
		writeJSON(w, http.StatusOK, resp)

	case len(parts) == 4 && parts[1] == "groups" && parts[3] == "failover" && r.Method == http.MethodPost:
		groupID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorKindInternal, "invalid group id")
			return
		}
		if err := s.o.PerformFailover(r.Context(), formation, groupID); err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrorKindFSMViolation, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})

	case len(parts) == 4 && parts[1] == "groups" && parts[3] == "switchover" && r.Method == http.MethodPost:
		groupID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorKindInternal, "invalid group id")
			return
		}
		if err := s.o.PerformSwitchover(r.Context(), formation, groupID); err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrorKindFSMViolation, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})

	case len(parts) == 2 && parts[1] == "events":
		events, err := s.o.Store.ListEvents(r.Context(), formation, eventsLimit(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrorKindInternal, err.Error())
			return
		}
		out := make([]Event, 0, len(events))
		for _, e := range events {
			out = append(out, Event{
				ID: e.ID, Formation: e.Formation, GroupID: e.GroupID,
				NodeID: e.NodeID, Message: e.Message, CreatedAt: e.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)

	default:
		logger.V(1).Info("unknown formation route", "path", r.URL.Path)
		writeError(w, http.StatusNotFound, ErrorKindInternal, "unknown route")
	}
}

func eventsLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 100
}

func nodeToAddress(n model.Node) NodeAddress {
	return NodeAddress{
		NodeID:       n.NodeID,
		GroupID:      n.GroupID,
		Name:         n.Name,
		Host:         n.Host,
		Port:         n.Port,
		CurrentRole:  n.CurrentRole,
		AssignedRole: n.AssignedRole,
		ReportedLSN:  string(n.ReportedLSN),
		HealthState:  n.HealthState,
	}
}

func writeRegisterError(w http.ResponseWriter, err error) {
	if errors.Is(err, monitor.ErrGroupFull) {
		writeError(w, http.StatusConflict, ErrorKindGroupFull, err.Error())
		return
	}
	if errors.Is(err, monitor.ErrNameCollision) {
		writeError(w, http.StatusConflict, ErrorKindNameCollision, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, ErrorKindInternal, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind ErrorKind, message string) {
	writeJSON(w, status, ErrorBody{Kind: kind, Message: message})
}
