package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.RelayService
}

func NewWSHandler(h *hub.Hub, svc service.RelayService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// HandleWebSocket handles GET /ws.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := pkglog.Ctx(r.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	h.hub.Register(client)
	h.service.HandleConnect(client)

	// The request context ends with the upgrade; frames are handled on a
	// background context tagged with the session.
	logger := pkglog.L().With().Str(pkglog.FieldSessionID, client.ID).Logger()
	ctx := pkglog.WithLogger(context.Background(), logger)

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.service.HandleFrame(ctx, c, message)
	})
}
