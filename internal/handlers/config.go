package handlers

import (
	"net/http"
)

// PublicConfig is what a window needs to speak the socket protocol.
type PublicConfig struct {
	EventPrefix string `json:"eventPrefix"`
	WSPath      string `json:"wsPath"`
}

type ConfigHandler struct {
	public PublicConfig
}

func NewConfigHandler(eventPrefix, wsPath string) *ConfigHandler {
	return &ConfigHandler{public: PublicConfig{EventPrefix: eventPrefix, WSPath: wsPath}}
}

// PublicConfig returns non-sensitive configuration for the frontend
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.public)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
