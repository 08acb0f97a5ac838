package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServerInfo is the static identity block served at GET /info.
type ServerInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Issuer    string `json:"issuer"`
	ActiveKID string `json:"active_key_id"`
}

func HandleInfoGET(info func() ServerInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info())
	}
}
