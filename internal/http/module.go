// Package http holds the pieces shared by the router and the domain modules
// that mount routes on it.
package http

import (
	"github.com/gin-gonic/gin"
)

// Module is a domain module with HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups handed to each module.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1.
	V1 *gin.RouterGroup
	// Hooks is /api/v1/hooks, behind the shared hook secret and the per-IP
	// hook rate limit.
	Hooks *gin.RouterGroup
}
