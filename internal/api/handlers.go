package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/BrandOS/internal/flow"
	"github.com/BTreeMap/BrandOS/internal/models"
	"github.com/BTreeMap/BrandOS/internal/util"
)

// EventRequest is the body of POST /sessions/{id}/events. NotificationID names one of the
// session's notifications for openNotification.
type EventRequest struct {
	Type           string            `json:"type"`
	Value          string            `json:"value,omitempty"`
	NotificationID string            `json:"notificationId,omitempty"`
	Answers        map[string]string `json:"answers,omitempty"`
}

// ChatRequest is the body of POST /sessions/{id}/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// DocumentRequest is the body of POST /sessions/{id}/documents.
type DocumentRequest struct {
	Filename string `json:"filename"`
}

// FlowsResult is returned by GET /catalog/flows.
type FlowsResult struct {
	CompanyType    models.CompanyType  `json:"companyType"`
	CompanyStage   models.CompanyStage `json:"companyStage"`
	EligibleFlows  []models.FlowType   `json:"eligibleFlows"`
	DefaultFlow    models.FlowType     `json:"defaultFlow"`
	AvailablePlans []models.PlanType   `json:"availablePlans"`
}

// HealthResult is returned by GET /health.
type HealthResult struct {
	Uptime    string `json:"uptime"`
	StartedAt string `json:"startedAt"`
}

var errEmptyBody = errors.New("request body is required")

// decodeJSONBody reads a bounded JSON body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// sessionID extracts the path session ID. Malformed IDs answer 404 without a store lookup.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !util.IsSessionID(id) {
		writeErrorResponse(w, fmt.Errorf("%w: %q", models.ErrSessionNotFound, id))
		return "", false
	}
	return id, true
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(HealthResult{
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt: s.startedAt.UTC().Format(time.RFC3339),
	}))
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Create(r.Context())
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err)
		writeErrorResponse(w, err)
		return
	}
	slog.Info("Server.createSessionHandler: session created", "sessionID", snap.SessionID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session created", snap))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.manager.List(r.Context())
	if err != nil {
		slog.Error("Server.listSessionsHandler: failed to list sessions", "error", err)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.manager.Get(r.Context(), id)
	if err != nil {
		slog.Debug("Server.getSessionHandler: lookup failed", "sessionID", id, "error", err)
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	snap, err := s.manager.Reset(r.Context(), id)
	if err != nil {
		slog.Warn("Server.resetSessionHandler: reset failed", "sessionID", id, "error", err)
		writeErrorResponse(w, err)
		return
	}
	slog.Info("Server.resetSessionHandler: session reset", "sessionID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", snap))
}

func (s *Server) dispatchEventHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req EventRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.dispatchEventHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	in := flow.EventInput{Type: req.Type, Value: req.Value, Answers: req.Answers}
	if req.NotificationID != "" {
		state, err := s.manager.State(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		n, ok := state.FindNotification(req.NotificationID)
		if !ok {
			writeErrorResponse(w, fmt.Errorf("%w: notification %q", models.ErrUnknownValue, req.NotificationID))
			return
		}
		in.Notification = &n
	}

	ev, err := flow.Decode(in)
	if err != nil {
		slog.Debug("Server.dispatchEventHandler: invalid event", "sessionID", id, "type", req.Type, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	snap, err := s.manager.Dispatch(r.Context(), id, ev)
	if err != nil {
		status := statusForError(err)
		if status != http.StatusConflict {
			writeErrorResponse(w, err)
			return
		}
		slog.Debug("Server.dispatchEventHandler: transition rejected", "sessionID", id, "event", ev.Kind(), "error", err)
		// The unchanged snapshot rides along so clients can re-render without another fetch.
		writeJSONResponse(w, status, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(err.Error()).
			WithResult(snap).
			Build())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	ns, err := s.manager.Notifications(r.Context(), id)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ns))
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	msgs, err := s.manager.Transcript(r.Context(), id)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

func (s *Server) sendChatHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req ChatRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.sendChatHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	msg, err := s.manager.SendChat(r.Context(), id, req.Message)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, models.Accepted("Reply pending", msg))
}

func (s *Server) uploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var req DocumentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		slog.Warn("Server.uploadDocumentHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: filename"))
		return
	}
	if err := s.manager.UploadDocument(r.Context(), id, req.Filename); err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusAccepted, models.Accepted("Analysis started", DocumentRequest{Filename: req.Filename}))
}

func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.catalog))
}

func (s *Server) catalogFlowsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ct, err := models.ParseCompanyType(q.Get("companyType"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	cs, err := models.ParseCompanyStage(q.Get("companyStage"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(FlowsResult{
		CompanyType:    ct,
		CompanyStage:   cs,
		EligibleFlows:  flow.EligibleFlows(ct, cs),
		DefaultFlow:    flow.DefaultFlow(ct, cs),
		AvailablePlans: flow.AvailablePlans(ct),
	}))
}
