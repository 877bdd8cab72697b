package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/security"
)

func newAuthRouter(issuer *security.JWTIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	POST(r, issuer, "/protected", func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no claims"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	}, RouteOpt{IsAuth: true})
	GET(r, issuer, "/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}, RouteOpt{IsAuth: false})
	return r
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	issuer := security.NewJWTIssuer("s3cret", time.Hour)
	r := newAuthRouter(issuer)

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rec.Code)
	}
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	issuer := security.NewJWTIssuer("s3cret", time.Hour)
	r := newAuthRouter(issuer)

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a header without the Bearer prefix, got %d", rec.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	issuer := security.NewJWTIssuer("s3cret", time.Hour)
	token, err := issuer.Issue("t1", "u1", "d1", "ios")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	r := newAuthRouter(issuer)

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid token, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsTokenFromDifferentSecret(t *testing.T) {
	other := security.NewJWTIssuer("other-secret", time.Hour)
	token, err := other.Issue("t1", "u1", "d1", "ios")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	r := newAuthRouter(security.NewJWTIssuer("s3cret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a token signed with a different secret, got %d", rec.Code)
	}
}

func TestUnauthedRouteSkipsAuth(t *testing.T) {
	r := newAuthRouter(security.NewJWTIssuer("s3cret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an unauthed route with no token, got %d", rec.Code)
	}
}

func TestClaimsFromReturnsNilWhenUnset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/bare", func(c *gin.Context) {
		if ClaimsFrom(c) != nil {
			t.Error("expected nil claims on a route Auth never ran for")
		}
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/bare", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
}
