package handlers

import (
	"net/http"

	"github.com/FmBlueSystem/mapof-analysis/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports database connectivity and catalog size so an
// operator can tell a cold-but-healthy service apart from a broken one.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler builds a HealthHandler bound to db.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck pings the database and counts stored tracks.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": gin.H{"status": "error: " + err.Error()},
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": gin.H{"status": "error: " + err.Error()},
		})
		return
	}

	var trackCount int64
	if err := h.db.Model(&models.Track{}).Count(&trackCount).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": gin.H{"status": "error: cannot query tracks - " + err.Error()},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"database": gin.H{
			"status": "healthy",
			"tracks": trackCount,
		},
	})
}
