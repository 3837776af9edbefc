package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"swrfmods/internal/visitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler streams the calling visitor's saved-set events. It must run
// behind visitor.Middleware.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := visitor.MustGetVisitor(c)
		if visitorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown visitor"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		_ = ws.WriteMessage(websocket.TextMessage, welcome("websocket"))
		hub.AddWS(ws, visitorID)
		hub.logger.Debug("ws client connected")

		// keep the connection open until the client goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.logger.Debug("ws client disconnected")
	}
}
