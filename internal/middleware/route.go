package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/security"
)

// RouteOpt mirrors the teacher's middleware.RouteOpt: the only knob a
// route needs is whether it requires a verified caller.
type RouteOpt struct {
	IsAuth bool
}

func POST(r gin.IRoutes, issuer *security.JWTIssuer, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, Auth(issuer), handler)
		return
	}
	r.POST(path, handler)
}

func GET(r gin.IRoutes, issuer *security.JWTIssuer, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, Auth(issuer), handler)
		return
	}
	r.GET(path, handler)
}
