package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/sql-agent/internal/interfaces/httpserver/handlers"
	v1 "github.com/janhq/sql-agent/internal/interfaces/httpserver/routes/v1"
)

// Provider registers every API route group.
type Provider struct {
	v1 *v1.Routes
}

// NewProvider builds the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{
		v1: v1.NewRoutes(handlerProvider),
	}
}

// Register attaches the versioned and legacy routes.
func (p *Provider) Register(router gin.IRouter) {
	p.v1.Register(router)
	p.v1.RegisterLegacy(router)
}
