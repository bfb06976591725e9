package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PlayGrid/logger"
)

// NotifyEvent is a direct push from another subsystem (facility availability
// changes, achievement unlocks) to one user's live connection.
type NotifyEvent struct {
	UserID string         `json:"userId"`
	Event  string         `json:"event"`
	Data   map[string]any `json:"data,omitempty"`
}

// HandleNotify is the HTTP face of the direct-send primitive, mounted under
// the internal-auth middleware.
func (s *Server) HandleNotify(c *gin.Context) {
	var ev NotifyEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.UserID == "" || ev.Event == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and event are required"})
		return
	}
	delivered := s.SendToUser(ev.UserID, BuildNotify(ev.Event, ev.Data))
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// HandleNotifyMsg is the NATS face of the same primitive: subscribed on
// notify.user.>, the subject tail names the recipient when the payload
// doesn't. Delivery is best effort; an offline user just misses the push.
func (s *Server) HandleNotifyMsg(subject string, data []byte) {
	var ev NotifyEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warnf("[gateway] bad notify payload subject=%s err=%v", subject, err)
		return
	}
	if ev.UserID == "" {
		if i := strings.LastIndex(subject, "."); i >= 0 {
			ev.UserID = subject[i+1:]
		}
	}
	if ev.UserID == "" || ev.Event == "" {
		logger.Warnf("[gateway] notify missing user/event subject=%s", subject)
		return
	}
	if !s.SendToUser(ev.UserID, BuildNotify(ev.Event, ev.Data)) {
		logger.Debugf("[gateway] notify dropped, user offline user=%s event=%s", ev.UserID, ev.Event)
	}
}
