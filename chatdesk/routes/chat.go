package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"chatdesk/chatdesk/config"
	"chatdesk/chatdesk/controllers"
	"chatdesk/chatdesk/middlewares"
	"chatdesk/chatdesk/utils/logging"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type sendMessageRequest struct {
	Content string `json:"content"`
	Async   bool   `json:"async"`
}

type setModelRequest struct {
	Model string `json:"model"`
}

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Get("/state", handleJSON(func(r *http.Request) (any, int, error) {
			return ctrl.State(), http.StatusOK, nil
		}))

		gr.Post("/sessions", handleJSON(func(r *http.Request) (any, int, error) {
			id := ctrl.CreateSession(r.Context())
			return map[string]string{"session_id": id}, http.StatusCreated, nil
		}))

		gr.Delete("/sessions/{id}", handleJSON(func(r *http.Request) (any, int, error) {
			if err := ctrl.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		gr.Put("/sessions/{id}/active", handleJSON(func(r *http.Request) (any, int, error) {
			if err := ctrl.SelectSession(r.Context(), chi.URLParam(r, "id")); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		gr.Put("/sessions/{id}/model", handleJSON(func(r *http.Request) (any, int, error) {
			var req setModelRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			if err := ctrl.SetSessionModel(r.Context(), chi.URLParam(r, "id"), req.Model); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		gr.Post("/messages", handleJSON(func(r *http.Request) (any, int, error) {
			var req sendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			sess, err := ctrl.SendMessage(r.Context(), req.Content, req.Async)
			if err != nil {
				return nil, statusFor(err), err
			}
			if req.Async {
				return map[string]string{"status": "pending"}, http.StatusAccepted, nil
			}
			return sess, http.StatusOK, nil
		}))

		gr.Post("/sessions/{id}/regenerate", handleJSON(func(r *http.Request) (any, int, error) {
			sess, err := ctrl.Regenerate(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				return nil, statusFor(err), err
			}
			return sess, http.StatusOK, nil
		}))

		// GET /chat/ws : pushes the state after every change
		gr.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(cfg)})
			if err != nil {
				logging.ErrorLogger.Error("websocket accept", zap.Error(err))
				return
			}
			defer conn.Close(websocket.StatusInternalError, "internal error")

			// The feed is one-way; CloseRead watches for the client hanging up.
			ctx := conn.CloseRead(r.Context())
			updates := ctrl.Subscribe(ctx)
			if err := writeState(ctx, conn, ctrl.State()); err != nil {
				return
			}
			for view := range updates {
				if err := writeState(ctx, conn, view); err != nil {
					return
				}
			}
			conn.Close(websocket.StatusNormalClosure, "")
		})
	})
	return r
}

func writeState(ctx context.Context, conn *websocket.Conn, view controllers.StateView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// originPatterns turns CORS_ORIGINS into websocket origin patterns.
func originPatterns(cfg config.Config) []string {
	var out []string
	for _, o := range cfg.CORSOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
