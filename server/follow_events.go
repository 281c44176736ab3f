package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	Logger "github.com/peek4c/peek4c/utils/log"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The client is a local app served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FollowEvents upgrades to a websocket and streams every follow change as a
// JSON FollowEvent until the client goes away.
func (h *handler) FollowEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		Logger.Log.WithError(err).Warn("cannot upgrade follow events connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events, token := h.Hub.AddNewConnection(ctx)
	Logger.Log.Debugf("follow events connection %s opened", token)

	// Reads only detect the close; clients never send anything.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			Logger.Log.Debugf("follow events connection %s closed", token)
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				Logger.Log.WithError(err).Debug("follow events write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
