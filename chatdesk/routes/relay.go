package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatdesk/chatdesk/controllers"
	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/utils/logging"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type relayRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type relayResponse struct {
	Reply string `json:"reply"`
}

type keyStatusResponse struct {
	HasKey bool   `json:"hasKey"`
	Prefix string `json:"prefix"`
}

// RelayRoutes serves POST /chat and GET /test. Error bodies keep the exact
// strings browser clients already match on.
func RelayRoutes(ctrl *controllers.RelayController) chi.Router {
	r := chi.NewRouter()

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req relayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logging.ErrorLogger.Error("relay request", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server-side error occurred.")
			return
		}
		reply, err := ctrl.Relay(r.Context(), req.Message, req.Model)
		if err != nil {
			status, msg := relayFailure(err)
			logging.ErrorLogger.Error("relay failed", zap.String("kind", llm.Kind(err)), zap.Error(err))
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, relayResponse{Reply: reply})
	})

	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		hasKey, prefix := ctrl.KeyStatus()
		writeJSON(w, http.StatusOK, keyStatusResponse{HasKey: hasKey, Prefix: prefix})
	})

	return r
}

func relayFailure(err error) (int, string) {
	var cfgErr *llm.ConfigError
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, controllers.ErrMessageRequired):
		return http.StatusBadRequest, "Message is required"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Reason
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, "OpenAI API call failed"
	default:
		return http.StatusInternalServerError, "Server-side error occurred."
	}
}
