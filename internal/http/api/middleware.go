package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/config"
	"github.com/omniflow/quotad/internal/models"
	"github.com/omniflow/quotad/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// serviceAuthMiddleware authenticates service-to-service callers. Two
// credential forms are accepted: an HS256 JWT signed with the shared
// secret whose subject names a registered service token, or the raw
// long-lived token compared against the stored bcrypt hash. When no
// secret is configured and no tokens exist the API runs open; intended
// for local development only.
func serviceAuthMiddleware(conn *gorm.DB, authCfg config.ServiceAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, okHeader := bearerToken(c)
		if !okHeader {
			if devOpen(c, conn, authCfg) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		if authCfg.Secret != "" {
			if claims, errJWT := security.ParseServiceToken(authCfg.Secret, raw); errJWT == nil {
				record, errFind := activeServiceToken(c, conn, claims.Subject)
				if errFind != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown service"})
					return
				}
				c.Set("serviceName", record.Name)
				c.Next()
				return
			}
		}

		// Raw-token path: compare against every enabled token hash.
		var tokens []models.ServiceToken
		if errFind := conn.WithContext(c.Request.Context()).
			Where("disabled = ?", false).
			Find(&tokens).Error; errFind != nil {
			log.WithError(errFind).Warn("service token lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth lookup failed"})
			return
		}
		for i := range tokens {
			if security.VerifyToken(tokens[i].TokenHash, raw) {
				c.Set("serviceName", tokens[i].Name)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// devOpen reports whether the API may run unauthenticated: no shared
// secret configured and no service tokens registered.
func devOpen(c *gin.Context, conn *gorm.DB, authCfg config.ServiceAuthConfig) bool {
	if authCfg.Secret != "" {
		return false
	}
	var count int64
	if errCount := conn.WithContext(c.Request.Context()).
		Model(&models.ServiceToken{}).
		Count(&count).Error; errCount != nil {
		return false
	}
	return count == 0
}

// activeServiceToken loads an enabled service token by name.
func activeServiceToken(c *gin.Context, conn *gorm.DB, name string) (*models.ServiceToken, error) {
	var record models.ServiceToken
	if errFind := conn.WithContext(c.Request.Context()).
		Where("name = ? AND disabled = ?", strings.TrimSpace(name), false).
		First(&record).Error; errFind != nil {
		return nil, errFind
	}
	return &record, nil
}
