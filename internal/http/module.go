package http

import "github.com/gin-gonic/gin"

// Module is a bounded context that mounts its own routes. The router knows
// modules only through this interface.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the groups they may mount on.
type RouterContext struct {
	// V1 is /api/v1, rate limited per client IP.
	V1 *gin.RouterGroup
	// Protected is V1 behind bearer token authentication.
	Protected *gin.RouterGroup
}
