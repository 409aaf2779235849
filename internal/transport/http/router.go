package http

import (
	"net/http"
	"time"

	httpmw "github.com/lingvo-chat/chat-service/internal/transport/http/middleware"
	"github.com/lingvo-chat/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, verifier *httpmw.JWTVerifier, memberSvc httpmw.HeartbeatToucher, presence httpmw.OnlineMarker, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint: токен в query, auth внутри рукопожатия
	r.Get("/ws", wsServer.HandleWS)

	// Все REST-маршруты требуют access-токен
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(httpmw.OnlineMiddleware(presence))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Post("/send", h.Send)
		pr.Post("/join", h.Join)
		pr.Post("/leave", h.Leave)

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)
			rm.Get("/", h.ListRooms)

			rm.Route("/{id}", func(rr chi.Router) {
				// здесь {id} уже разобран — touch видит комнату
				rr.Use(httpmw.HeartbeatMiddleware(memberSvc))
				rr.Post("/accept", h.AcceptInvite)
				rr.Get("/messages", h.GetMessages)
				rr.Get("/messages/{mid}/reads", h.GetReadReceipts)
				rr.Post("/read", h.MarkRead)
				rr.Get("/participants", h.GetParticipants)
				rr.Get("/typing", h.GetTyping)
				rr.Post("/typing", h.Typing)
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
