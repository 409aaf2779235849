package httpmw

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type HeartbeatToucher interface {
	TouchHeartbeat(ctx context.Context, roomID string, userID int64) error
}

type OnlineMarker interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
}

// OnlineMiddleware продлевает online-флаг в presence на любом
// авторизованном запросе.
func OnlineMiddleware(presence OnlineMarker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := UserIDFromCtx(r.Context()); userID != 0 {
				// best-effort: ошибки не прерывают запрос
				_ = presence.SetOnline(r.Context(), userID, true)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HeartbeatMiddleware обновляет last_seen участника. Вешается внутри
// /rooms/{id}-поддерева: у родительских групп URL-параметр ещё пуст.
func HeartbeatMiddleware(memberSvc HeartbeatToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromCtx(r.Context())
			if userID != 0 {
				if roomID := chi.URLParam(r, "id"); roomID != "" {
					_ = memberSvc.TouchHeartbeat(r.Context(), roomID, userID)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
