// internal/server/handlers/agent.go

package handlers

import (
	"encoding/json"
	"net/http"

	"orcast/internal/domain/agent"
)

// AgentHandler exposes the agent chat panel
type AgentHandler struct {
	panel agent.Panel
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(panel agent.Panel) *AgentHandler {
	return &AgentHandler{
		panel: panel,
	}
}

// GetMessages returns the panel log, oldest first
func (h *AgentHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.panel.Messages())
}

// AskRequest is the body of an assistant question
type AskRequest struct {
	Question string `json:"question"`
}

// Ask forwards a question to the assistant. The panel logs a failed answer
// itself, so the error line is returned with a 502.
func (h *AgentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.panel.Ask(r.Context(), req.Question)
	if err != nil {
		if msg.ID == "" {
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		respondWithJSON(w, http.StatusBadGateway, msg)
		return
	}

	respondWithJSON(w, http.StatusOK, msg)
}
