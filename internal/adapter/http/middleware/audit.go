package middleware

import (
	"encoding/json"
	"net/http"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditLog records request-level events the services cannot see:
// successful logouts and rejected credentials on protected routes.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		action, resourceType := mapRequestToAction(c.Request.Method, c.FullPath(), status)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]any{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"client_ip": c.ClientIP(),
		})

		entry := domain.NewAuditLog(c.GetString(CtxWalletID), action, resourceType, "")
		entry.Details = string(details)
		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRequestToAction(method, route string, status int) (domain.AuditAction, string) {
	switch {
	case status == http.StatusUnauthorized && !(route == "/api/v1/sessions" && method == http.MethodPost):
		return domain.AuditActionAuthRejected, "session"
	case status >= 300 || status < 200:
		return "", ""
	case route == "/api/v1/sessions" && method == http.MethodDelete:
		return domain.AuditActionLogout, "session"
	}
	return "", ""
}
