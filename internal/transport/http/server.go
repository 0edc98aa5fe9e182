package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/auth"
	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/notify"
	"github.com/vovakirdan/roomrelay/internal/store"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Relay    *core.Relay
	Rooms    *core.Registry
	Messages store.MessageStore
	Notify   *notify.Service
	// ServiceAuth guards the notification dispatch endpoint. nil leaves it open.
	ServiceAuth *auth.JWTConfig
}

// NewServer builds the HTTP server: /ws on a plain mux, REST routes on gin.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := router.Group("/api")

	suggestions := NewSuggestionHandlers(cfg.Suggestions.Delay, logger)
	api.GET("/replySuggestion", suggestions.ReplySuggestions)

	rooms := NewRoomHandlers(deps.Rooms, deps.Messages, cfg.Relay.HistoryLimit, logger)
	api.GET("/rooms/:roomId", rooms.GetRoom)
	api.GET("/rooms/:roomId/messages", rooms.ListMessages)

	if deps.Notify != nil {
		notifications := NewNotificationHandlers(deps.Notify, logger)
		api.POST("/register-device", notifications.RegisterDevice)
		dispatch := []gin.HandlerFunc{}
		if deps.ServiceAuth != nil {
			dispatch = append(dispatch, ServiceAuthMiddleware(deps.ServiceAuth, logger))
		}
		dispatch = append(dispatch, notifications.SendNotification)
		api.POST("/notifications", dispatch...)
	}

	// /ws stays outside gin: the upgrade hijacks the connection after writing the 101.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Relay, cfg.Relay, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}
