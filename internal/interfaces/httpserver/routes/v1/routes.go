package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/sql-agent/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")
	registerAskRoutes(group, r.handlers.Ask)
}

// RegisterLegacy attaches the unversioned routes kept for older clients.
func (r *Routes) RegisterLegacy(router gin.IRouter) {
	router.POST("/ask", legacyAsk(r.handlers.Ask))
}
