package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
)

const (
	msgInternal    = "internal server error"
	msgUnavailable = "service temporarily unavailable, please retry"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind lending.Kind) int {
	switch kind.Category() {
	case lending.CategoryNotFound:
		return http.StatusNotFound
	case lending.CategoryRejected:
		return http.StatusForbidden
	case lending.CategoryConflict:
		return http.StatusBadRequest
	case lending.CategoryTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := lending.KindOf(err)
	status := StatusFor(kind)

	msg := err.Error()
	switch kind.Category() {
	case lending.CategoryTransient:
		msg = msgUnavailable
	case lending.CategoryInternal:
		msg = msgInternal
	}

	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind.String(), "error", err.Error())
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
		"kind":    kind.String(),
	})
}

func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

func respondConflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, gin.H{"success": false, "error": msg})
}
