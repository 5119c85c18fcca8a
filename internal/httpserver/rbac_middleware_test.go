package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepay/internal/handler"
	"stagepay/internal/model"
	"stagepay/pkg/rbac"
)

func permissionEngine(actor *model.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(handler.ActorKey, *actor)
		}
		c.Next()
	})
	r.GET("/guarded", RequirePermission(rbac.PermissionReplayOutbox), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequirePermission(t *testing.T) {
	cases := []struct {
		name   string
		actor  *model.Actor
		status int
		code   string
	}{
		{"anonymous", nil, http.StatusUnauthorized, "unauthenticated"},
		{"contractor", &contractor, http.StatusForbidden, "forbidden"},
		{"admin", &adminActor, http.StatusNoContent, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			permissionEngine(tc.actor).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))

			assert.Equal(t, tc.status, w.Code)
			if tc.code == "" {
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}
