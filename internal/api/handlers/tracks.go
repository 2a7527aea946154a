package handlers

import (
	"net/http"
	"strconv"

	"github.com/FmBlueSystem/mapof-analysis/internal/analyzer"
	"github.com/FmBlueSystem/mapof-analysis/internal/hamms"
	"github.com/FmBlueSystem/mapof-analysis/internal/storage"
	"github.com/gin-gonic/gin"
)

// TracksHandler exposes the analysis and similarity-search surface.
type TracksHandler struct {
	analyzer *analyzer.Analyzer
	storage  *storage.Storage
}

// NewTracksHandler builds a TracksHandler bound to its dependencies.
func NewTracksHandler(a *analyzer.Analyzer, st *storage.Storage) *TracksHandler {
	return &TracksHandler{analyzer: a, storage: st}
}

type analyzeRequest struct {
	Path            string `json:"path" binding:"required"`
	ForceReanalysis bool   `json:"force_reanalysis"`
}

// Analyze runs the full pipeline on a single file and returns its result.
func (h *TracksHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.analyzer.AnalyzeTrack(c.Request.Context(), req.Path, req.ForceReanalysis)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"path":  result.TrackPath,
			"error": result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"track":  result.Track,
		"vector": result.Vector,
		"cached": result.Cached,
	})
}

type batchAnalyzeRequest struct {
	Paths           []string `json:"paths" binding:"required"`
	ForceReanalysis bool     `json:"force_reanalysis"`
}

// BatchAnalyze runs the pipeline over many files concurrently and returns
// one result per input path, in input order.
func (h *TracksHandler) BatchAnalyze(c *gin.Context) {
	var req batchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := h.analyzer.BatchAnalyze(c.Request.Context(), req.Paths, req.ForceReanalysis)

	type item struct {
		Path    string        `json:"path"`
		Success bool          `json:"success"`
		Track   interface{}   `json:"track,omitempty"`
		Vector  hamms.Vector  `json:"vector,omitempty"`
		Error   string        `json:"error,omitempty"`
	}
	out := make([]item, len(results))
	for i, r := range results {
		it := item{Path: r.TrackPath, Success: r.Success, Vector: r.Vector}
		if r.Success {
			it.Track = r.Track
		} else if r.Error != nil {
			it.Error = r.Error.Error()
		}
		out[i] = it
	}

	c.JSON(http.StatusOK, gin.H{"results": out})
}

// Similar runs a k-nearest-neighbor similarity query against the track's
// stored HAMMS vector.
func (h *TracksHandler) Similar(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid track id"})
		return
	}

	threshold := 0.7
	if v := c.Query("threshold"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = parsed
		}
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	seedVector, err := h.storage.GetVector(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stored analysis for that track"})
		return
	}

	rows, err := h.storage.ListVectors(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	candidates := make([]hamms.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = hamms.Candidate{ID: row.TrackID, Vector: row.Vector}
	}

	matches := hamms.KNearest(seedVector, candidates, threshold, limit)
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
