package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/backend/internal/auth"
	"github.com/dorkfun/backend/internal/config"
	"github.com/dorkfun/backend/internal/game"
)

const adminTokenTTL = 12 * time.Hour

// AdminLogin exchanges the shared secret for a short-lived session token
func AdminLogin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Secret string `json:"secret"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
			return
		}
		if !auth.VerifyAdmin(req.Secret, cfg.AdminSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin_unauthorized"})
			return
		}

		token, err := auth.MintAdminToken(cfg.AdminSecret, adminTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": int(adminTokenTTL.Seconds())})
	}
}

// AdminAuth gates the admin group behind the secret or a minted token
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !auth.VerifyAdmin(bearer, cfg.AdminSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin_unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminStatus reports the emergency flag and live-match count
func AdminStatus(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.EmergencyStatus())
	}
}

// AdminEmergency stops intake and draws every live match
func AdminEmergency(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		drained := svc.EmergencyDrawAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"emergency": true, "drained": drained})
	}
}

// AdminResume lifts emergency mode
func AdminResume(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc.Resume()
		c.JSON(http.StatusOK, gin.H{"emergency": false})
	}
}
