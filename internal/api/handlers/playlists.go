package handlers

import (
	"net/http"

	"github.com/FmBlueSystem/mapof-analysis/internal/playlist"
	"github.com/gin-gonic/gin"
)

// PlaylistsHandler exposes seeded playlist generation.
type PlaylistsHandler struct {
	generator *playlist.Generator
}

// NewPlaylistsHandler builds a PlaylistsHandler bound to its generator.
func NewPlaylistsHandler(g *playlist.Generator) *PlaylistsHandler {
	return &PlaylistsHandler{generator: g}
}

type createPlaylistRequest struct {
	SeedTrackID   uint    `json:"seed_track_id" binding:"required"`
	Length        int     `json:"length" binding:"required"`
	BPMTolerance  float64 `json:"bpm_tolerance"`
	SubgenreFocus string  `json:"subgenre_focus"`
	EnergyCurve   string  `json:"energy_curve"`
}

// Create generates a seeded playlist from the request criteria.
func (h *PlaylistsHandler) Create(c *gin.Context) {
	var req createPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.generator.Generate(playlist.Request{
		SeedTrackID:   req.SeedTrackID,
		Length:        req.Length,
		BPMTolerance:  req.BPMTolerance,
		SubgenreFocus: req.SubgenreFocus,
		EnergyCurve:   playlist.EnergyCurve(req.EnergyCurve),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":           result.Entries,
		"short":             result.Short,
		"bpm_adherence":     result.BPMAdherence,
		"genre_coherence":   result.GenreCoherence,
		"energy_flow_score": result.EnergyFlowScore,
	})
}
