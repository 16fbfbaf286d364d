// Package rest exposes session verification to relying-party backends
// over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"

	"github.com/digitaldrreamer/veiled-sub002/pkg/session"
)

// SessionVerifier checks a nullifier against the on-chain registry.
// *session.Manager satisfies it.
type SessionVerifier interface {
	VerifySession(ctx context.Context, nullifier [32]byte) (*session.SessionStatus, error)
}

type Handler struct {
	Sessions SessionVerifier
}

func NewHandler(sessions SessionVerifier) *Handler {
	return &Handler{Sessions: sessions}
}

// Router wires the handler onto a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	router := gin.Default()
	router.GET("/v1/session/verify", h.VerifySession)
	return router
}

// VerifySession godoc
// @Summary      Verify a session nullifier
// @Description  Checks the on-chain registry for the nullifier's session record
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        nullifier query string true "Base58 session nullifier"
// @Success      200 {object} map[string]interface{} "Session status"
// @Failure      400 {object} map[string]string "Missing nullifier"
// @Failure      422 {object} map[string]string "Could not parse nullifier"
// @Failure      500 {object} map[string]string "Registry lookup failed"
// @Router       /v1/session/verify [get]
func (h *Handler) VerifySession(c *gin.Context) {
	encoded := c.Query("nullifier")
	if encoded == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: nullifier param is empty",
		})
		return
	}

	raw, err := base58.Decode(encoded)
	if err != nil || len(raw) != 32 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Could not parse nullifier: expected 32 base58-encoded bytes",
		})
		return
	}

	var nullifier [32]byte
	copy(nullifier[:], raw)

	status, err := h.Sessions.VerifySession(c.Request.Context(), nullifier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Could not verify session: " + err.Error(),
		})
		return
	}

	resp := gin.H{
		"valid":   status.Valid,
		"expired": status.Expired,
	}
	if status.Valid || status.Expired {
		resp["domain"] = status.Domain
		resp["expires_at"] = status.ExpiresAt.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
