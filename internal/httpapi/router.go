// Package httpapi is the server's HTTP surface: sighting CRUD, species
// lookup, the reachability probe and the real-time channel upgrade.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/chat"
	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
)

// SightingStore is the document store as seen by the handlers.
type SightingStore interface {
	ListSightings(ctx context.Context) ([]sighting.Sighting, error)
	GetSighting(ctx context.Context, id string) (*sighting.Sighting, error)
	CreateSighting(ctx context.Context, s *sighting.Sighting) error
	CreateSightings(ctx context.Context, list []sighting.Sighting) ([]sighting.Sighting, error)
	UpdateIdentification(ctx context.Context, id string, upd sighting.Identification) (*sighting.Sighting, error)
}

type Lookuper interface {
	Lookup(ctx context.Context, term string) ([]sighting.Candidate, error)
}

// Deps are the collaborators the router needs. Lookup may be nil, in which
// case the query route answers 503.
type Deps struct {
	Sightings SightingStore
	Chat      *chat.Service
	Lookup    Lookuper
	Bus       *bus.Bus
	Logger    *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handler{
		sightings: d.Sightings,
		lookup:    d.Lookup,
		bus:       d.Bus,
		logger:    d.Logger,
	}
	ws := &channel{chat: d.Chat, logger: d.Logger}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(recovery(d.Logger))
	r.Use(requestID())
	r.Use(accessLog(d.Logger))

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/if_online", h.ifOnline)
	r.GET("/ws", ws.serve)

	sights := r.Group("/sights")
	sights.GET("", h.listSightings)
	sights.POST("", h.createSighting)
	sights.POST("/many", h.createSightings)
	sights.GET("/query/:term", h.query)
	sights.GET("/:id", h.getSighting)
	sights.PUT("/:id", h.updateIdentification)

	return r
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
