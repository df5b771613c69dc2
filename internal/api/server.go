// internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/notifications"
)

// Server is the thin JSON boundary over the notification subsystem. It only
// marshals requests onto the engine, registry, and log; all semantics live
// below it.
type Server struct {
	engine   *notifications.DeliveryEngine
	registry *notifications.SubscriptionRegistry
	journal  *notifications.NotificationLog
	cleanup  *notifications.CleanupJob
	logger   logger.Logger
}

func NewServer(engine *notifications.DeliveryEngine, registry *notifications.SubscriptionRegistry, journal *notifications.NotificationLog, cleanup *notifications.CleanupJob, log logger.Logger) *Server {
	return &Server{
		engine:   engine,
		registry: registry,
		journal:  journal,
		cleanup:  cleanup,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Register mounts the handlers on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/notifications/send", s.handleSend)
	mux.HandleFunc("POST /v1/subscriptions", s.handleSaveSubscription)
	mux.HandleFunc("DELETE /v1/subscriptions/{id}", s.handleRemoveSubscription)
	mux.HandleFunc("POST /v1/subscriptions/deactivate", s.handleDeactivate)
	mux.HandleFunc("GET /v1/subscriptions/stats", s.handleStats)
	mux.HandleFunc("GET /v1/notifications", s.handleHistory)
	mux.HandleFunc("GET /v1/notifications/unread-count", s.handleUnreadCount)
	mux.HandleFunc("POST /v1/notifications/{id}/read", s.handleMarkOneRead)
	mux.HandleFunc("POST /v1/notifications/read-all", s.handleMarkAllRead)
	mux.HandleFunc("POST /v1/cleanup", s.handleCleanup)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var event notifications.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, commonerrors.NewValidationError(err.Error()))
		return
	}
	result, err := s.engine.Send(r.Context(), event)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSaveSubscription(w http.ResponseWriter, r *http.Request) {
	var in notifications.SaveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, commonerrors.NewValidationError(err.Error()))
		return
	}
	id, err := s.registry.Save(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"subscriptionId": id})
}

func (s *Server) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Endpoint == "" {
		s.writeError(w, commonerrors.NewValidationError("endpoint is required"))
		return
	}
	if err := s.registry.DeactivateByEndpoint(r.Context(), in.Endpoint); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.registry.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ref, ok := recipientFromQuery(r)
	if !ok {
		s.writeError(w, commonerrors.NewValidationError("recipient_type and recipient_id are required"))
		return
	}
	q := notifications.HistoryQuery{
		Limit:      intQuery(r, "limit"),
		Offset:     intQuery(r, "offset"),
		TypeFilter: notifications.NotificationType(r.URL.Query().Get("type")),
		UnreadOnly: r.URL.Query().Get("unread_only") == "true",
	}
	page, err := s.journal.History(r.Context(), ref, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ref, ok := recipientFromQuery(r)
	if !ok {
		s.writeError(w, commonerrors.NewValidationError("recipient_type and recipient_id are required"))
		return
	}
	count, err := s.journal.UnreadCount(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

func (s *Server) handleMarkOneRead(w http.ResponseWriter, r *http.Request) {
	ref, ok := recipientFromQuery(r)
	if !ok {
		s.writeError(w, commonerrors.NewValidationError("recipient_type and recipient_id are required"))
		return
	}
	if err := s.journal.MarkOneRead(r.Context(), ref, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ref, ok := recipientFromQuery(r)
	if !ok {
		s.writeError(w, commonerrors.NewValidationError("recipient_type and recipient_id are required"))
		return
	}
	if err := s.journal.MarkAllRead(r.Context(), ref); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.cleanup.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func recipientFromQuery(r *http.Request) (notifications.RecipientRef, bool) {
	ref := notifications.RecipientRef{
		Type: notifications.RecipientType(r.URL.Query().Get("recipient_type")),
		ID:   r.URL.Query().Get("recipient_id"),
	}
	return ref, ref.Validate() == nil
}

func intQuery(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case commonerrors.IsValidation(err):
		status = http.StatusBadRequest
	case commonerrors.IsNotFound(err):
		status = http.StatusNotFound
	case commonerrors.IsUnauthorized(err):
		status = http.StatusForbidden
	case commonerrors.IsConfiguration(err):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
