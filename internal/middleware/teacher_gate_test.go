package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canto-lessons/internal/service"
)

func gatedRouter(gate pinChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teacher", TeacherGate(gate), func(c *gin.Context) {
		c.String(http.StatusOK, "dashboard")
	})
	return r
}

func TestTeacherGateRejectsWrongPIN(t *testing.T) {
	r := gatedRouter(service.NewPINGate("1234"))

	for _, pin := range []string{"", "4321"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
		req.Header.Set(TeacherPINHeader, pin)
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code, pin)
		var body struct {
			Error struct {
				Code        string `json:"code"`
				Remediation string `json:"remediation"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "PIN_REJECTED", body.Error.Code)
		assert.NotEmpty(t, body.Error.Remediation)
	}
}

func TestTeacherGateAllowsMatchingPIN(t *testing.T) {
	r := gatedRouter(service.NewPINGate("1234"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.Header.Set(TeacherPINHeader, "1234")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard", rec.Body.String())
}

func TestTeacherGateOpenWithoutPIN(t *testing.T) {
	r := gatedRouter(nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teacher", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
