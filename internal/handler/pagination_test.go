package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithQuery(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/students?"+rawQuery, nil)
	return c
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		total     int
		start     int
		end       int
		paginated bool
		pageSize  int
	}{
		{name: "no params returns everything", query: "", total: 45, start: 0, end: 45},
		{name: "first page with default size", query: "page=1", total: 45, start: 0, end: 20, paginated: true, pageSize: 20},
		{name: "last partial page", query: "page=3&limit=20", total: 45, start: 40, end: 45, paginated: true, pageSize: 20},
		{name: "page past the end is empty", query: "page=9&limit=10", total: 45, start: 45, end: 45, paginated: true, pageSize: 10},
		{name: "invalid values fall back", query: "page=-2&limit=abc", total: 5, start: 0, end: 5, paginated: true, pageSize: 20},
		{name: "limit is capped", query: "limit=5000", total: 300, start: 0, end: 200, paginated: true, pageSize: 200},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, p := pageWindow(contextWithQuery(tc.query), tc.total)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
			if !tc.paginated {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tc.pageSize, p.PageSize)
			assert.Equal(t, tc.total, p.TotalCount)
		})
	}
}
