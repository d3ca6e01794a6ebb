package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

type alertConfigRequest struct {
	Name     string         `json:"name"`
	Channel  string         `json:"channel"`
	Settings map[string]any `json:"settings"`
	MinScore int            `json:"min_score"`
	Enabled  *bool          `json:"enabled"`
}

// channel normalizes the requested channel name.
func (req alertConfigRequest) channel() core.AlertChannel {
	return core.AlertChannel(strings.ToLower(req.Channel))
}

// validate rejects incomplete configs before they reach the store.
// Webhook settings are decoded eagerly so a bad url or timeout fails
// here instead of at delivery time.
func (req alertConfigRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: alert config name is required", core.ErrInvalid)
	}
	if req.Channel == "" {
		return fmt.Errorf("%w: alert channel is required", core.ErrInvalid)
	}
	ch := req.channel()
	if ch != core.ChannelLog && ch != core.ChannelWebhook {
		return fmt.Errorf("%w: unknown channel %q (want log or webhook)", core.ErrInvalid, req.Channel)
	}
	if req.MinScore < 0 || req.MinScore > 100 {
		return fmt.Errorf("%w: min_score must be between 0 and 100", core.ErrInvalid)
	}
	if ch == core.ChannelWebhook {
		if _, err := alert.DecodeWebhookSettings(req.Settings); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListAlertConfigs(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if configs == nil {
		configs = []*core.AlertConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreateAlertConfig(w http.ResponseWriter, r *http.Request) {
	var req alertConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg := &core.AlertConfig{
		Name:     strings.TrimSpace(req.Name),
		Channel:  req.channel(),
		Settings: req.Settings,
		MinScore: req.MinScore,
		Enabled:  enabled,
	}
	if err := s.store.CreateAlertConfig(cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("alert config created", "config_id", cfg.ID, "channel", cfg.Channel)
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleUpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetAlertConfig(chi.URLParam(r, "configID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req alertConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	cfg.Name = strings.TrimSpace(req.Name)
	cfg.Channel = req.channel()
	cfg.Settings = req.Settings
	cfg.MinScore = req.MinScore
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := s.store.UpdateAlertConfig(cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteAlertConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "configID")
	if err := s.store.DeleteAlertConfig(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("alert config deleted", "config_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleTestAlert fires a synthetic payload through one config. Unlike
// run-driven alerting, a delivery failure surfaces here so a channel
// can be verified before it is trusted.
func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		s.writeError(w, r, fmt.Errorf("%w: alerting is not configured", core.ErrInvalid))
		return
	}

	if err := s.alerts.Test(r.Context(), chi.URLParam(r, "configID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleListAlertEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListAlertEvents(queryInt(r, "limit", 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*core.AlertEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
