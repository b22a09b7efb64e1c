package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/auralabs/aura-core/internal/config"
	"github.com/auralabs/aura-core/internal/turn"
	"github.com/auralabs/aura-core/pkg/io/audioring"
	"github.com/auralabs/aura-core/pkg/io/device"
	wsdevice "github.com/auralabs/aura-core/pkg/io/device/websocket"
	"github.com/auralabs/aura-core/pkg/io/registry"
	"github.com/auralabs/aura-core/pkg/logger"
)

// control messages a client may send alongside binary PCM frames
type controlMessage struct {
	Type string `json:"type"` // "mute" | "leave"
}

type Dependencies struct {
	Settings *config.Settings
	Sessions *turn.SessionRegistry
	Devices  registry.DeviceRegistry
	Logger   *logger.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func InitializeRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/rooms/:roomID/state", func(c *gin.Context) {
		roomID, err := uuid.Parse(c.Param("roomID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		room, ok := deps.Sessions.Get(roomID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not active"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": string(room.State())})
	})

	router.DELETE("/rooms/:roomID", func(c *gin.Context) {
		roomID, err := uuid.Parse(c.Param("roomID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
			return
		}
		deps.Sessions.Remove(roomID)
		deps.Devices.RemoveRoom(roomID)
		c.JSON(http.StatusOK, gin.H{"status": "closed"})
	})

	router.GET("/ws/rooms/:roomID", func(c *gin.Context) {
		handleMediaSocket(c, deps)
	})
}

// handleMediaSocket is the media gateway for one participant: binary
// messages are inbound PCM frames, JSON messages are control commands, and
// outbound audio/events arrive through the endpoint attached to the device
// registry.
func handleMediaSocket(c *gin.Context, deps Dependencies) {
	log := deps.Logger

	roomID, err := uuid.Parse(c.Param("roomID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	speakerID, err := uuid.Parse(c.Query("speaker"))
	if err != nil {
		speakerID = uuid.New()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	ep := wsdevice.New(conn, device.Capabilities{AudioSink: true, EventSink: true})
	if err := deps.Devices.AttachEndpoint(roomID, ep); err != nil {
		log.Errorf("endpoint attach failed: %v", err)
		conn.Close()
		return
	}

	room := deps.Sessions.GetOrCreate(roomID)
	log.Infof("speaker %s joined room %s", speakerID, roomID)

	// Inbound frames land in a bounded ring first so a bursty client drops
	// its own oldest audio instead of stalling the socket read loop.
	frameBytes := deps.Settings.Audio.FrameBytes()
	ring := audioring.New(frameBytes * 256)
	pumpDone := make(chan struct{})
	go pumpFrames(room, ring, deps.Settings.Audio.FrameDuration(), pumpDone)

	defer func() {
		close(pumpDone)
		room.SpeakerLeft(speakerID)
		deps.Devices.DetachEndpoint(roomID, ep.ID())
		conn.Close()
		log.Infof("speaker %s left room %s", speakerID, roomID)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			err := ring.Enqueue(audioring.Frame{
				Speaker:   speakerID,
				Data:      data,
				Timestamp: time.Now(),
			})
			if err != nil {
				log.Warnf("frame enqueue failed for %s: %v", speakerID, err)
			}
		case websocket.TextMessage:
			var ctl controlMessage
			if err := json.Unmarshal(data, &ctl); err != nil {
				log.Debugf("bad control message from %s: %v", speakerID, err)
				continue
			}
			switch ctl.Type {
			case "mute":
				room.Mute()
			case "leave":
				return
			}
		}
	}
}

// pumpFrames drains the connection's ring into the room at frame pace.
func pumpFrames(room *turn.Room, ring audioring.FrameRing, frameDur time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(frameDur / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for {
				f, ok := ring.Dequeue()
				if !ok {
					break
				}
				room.SubmitFrame(f.Speaker, f.Data)
			}
		}
	}
}
