package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/docstore"
	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
)

// Bus kinds published by the HTTP surface.
const (
	KindSightCreated    = "sight.created"
	KindSightIdentified = "sight.identified"
)

type handler struct {
	sightings SightingStore
	lookup    Lookuper
	bus       *bus.Bus
	logger    *zap.Logger
}

func (h *handler) ifOnline(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *handler) listSightings(c *gin.Context) {
	list, err := h.sightings.ListSightings(c.Request.Context())
	if err != nil {
		h.logger.Error("list sightings", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list sightings")
		return
	}
	if list == nil {
		list = []sighting.Sighting{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) getSighting(c *gin.Context) {
	s, err := h.sightings.GetSighting(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			fail(c, http.StatusNotFound, "sighting not found")
			return
		}
		h.logger.Error("get sighting", zap.String("sight_id", c.Param("id")), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to load sighting")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) createSighting(c *gin.Context) {
	var s sighting.Sighting
	if err := c.ShouldBindJSON(&s); err != nil {
		fail(c, http.StatusBadRequest, "invalid sighting: "+err.Error())
		return
	}
	if err := h.sightings.CreateSighting(c.Request.Context(), &s); err != nil {
		h.logger.Error("create sighting", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to create sighting")
		return
	}
	h.bus.Emit(KindSightCreated, s)
	c.JSON(http.StatusCreated, s)
}

// createSightings is the bulk flush target of offline clients. Ids chosen by
// the client are kept, so a resubmitted batch inserts nothing twice.
func (h *handler) createSightings(c *gin.Context) {
	var list []sighting.Sighting
	if err := c.ShouldBindJSON(&list); err != nil {
		fail(c, http.StatusBadRequest, "invalid sightings: "+err.Error())
		return
	}
	inserted, err := h.sightings.CreateSightings(c.Request.Context(), list)
	if err != nil {
		h.logger.Error("bulk insert sightings", zap.Int("count", len(list)), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to create sightings")
		return
	}
	for _, s := range inserted {
		h.bus.Emit(KindSightCreated, s)
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": len(inserted)})
}

func (h *handler) updateIdentification(c *gin.Context) {
	var upd sighting.Identification
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "invalid identification: "+err.Error())
		return
	}
	id := c.Param("id")
	s, err := h.sightings.UpdateIdentification(c.Request.Context(), id, upd)
	switch {
	case errors.Is(err, docstore.ErrNotAuthor):
		fail(c, http.StatusForbidden, "only the author can identify this sighting")
		return
	case errors.Is(err, docstore.ErrNotFound):
		fail(c, http.StatusNotFound, "sighting not found")
		return
	case err != nil:
		h.logger.Error("update identification", zap.String("sight_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to update sighting")
		return
	}
	h.bus.Emit(KindSightIdentified, *s)
	c.JSON(http.StatusOK, s)
}

func (h *handler) query(c *gin.Context) {
	if h.lookup == nil {
		fail(c, http.StatusServiceUnavailable, "lookup unavailable")
		return
	}
	out, err := h.lookup.Lookup(c.Request.Context(), c.Param("term"))
	if err != nil {
		h.logger.Warn("species lookup failed", zap.String("term", c.Param("term")), zap.Error(err))
		fail(c, http.StatusBadGateway, "lookup failed")
		return
	}
	c.JSON(http.StatusOK, out)
}
