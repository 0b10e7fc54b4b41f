package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wearly/wearly/internal/middleware"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/realtime"
)

// DeviceRegistrar はアップグレード済みの接続を端末チャネルに登録する。
type DeviceRegistrar interface {
	NewClient(conn *websocket.Conn, userID string) *realtime.Client
}

// DeviceHandler はコンパニオン端末のWebSocket接続を受け付けるハンドラー。
type DeviceHandler struct {
	auth          middleware.TokenAuthenticator
	registrar     DeviceRegistrar
	allowedOrigin string
	upgrader      websocket.Upgrader
}

// NewDeviceHandler はDeviceHandlerを生成する。
// Originヘッダーのない接続（ブラウザ以外の端末）とallowedOriginからの接続を許可する。
func NewDeviceHandler(auth middleware.TokenAuthenticator, registrar DeviceRegistrar, allowedOrigin string) *DeviceHandler {
	h := &DeviceHandler{
		auth:          auth,
		registrar:     registrar,
		allowedOrigin: allowedOrigin,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

func (h *DeviceHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.allowedOrigin
}

// Connect はトークンを検証し、WebSocketにアップグレードする。
// 端末はAuthorizationヘッダーを付けられないため、トークンはクエリで受け取る。
// GET /ws/device?token=...
func (h *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	userID, err := h.auth.Authenticate(token)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗時のレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.registrar.NewClient(conn, userID)
	slog.Info("device connected", slog.String("user_id", userID))
}
