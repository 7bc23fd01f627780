package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRoleRouter(roles []string, haveRoles bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		if haveRoles {
			c.Set(ContextRolesKey, roles)
		}
		c.Next()
	})
	engine.GET("/guarded", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name      string
		roles     []string
		haveRoles bool
		want      int
	}{
		{"matching role", []string{"viewer", "admin"}, true, http.StatusOK},
		{"wrong role", []string{"viewer"}, true, http.StatusForbidden},
		{"no roles set", nil, false, http.StatusForbidden},
		{"empty role list", []string{}, true, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newRoleRouter(tc.roles, tc.haveRoles)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			engine.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
