package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestErrorCarriesCodeAndRemediation(t *testing.T) {
	c, rec := testContext()
	err := appErrors.WithRemediation(appErrors.Clone(appErrors.ErrSaveFailed, "could not save lesson"), "Free up space.")
	Error(c, err)

	assert.Equal(t, http.StatusInsufficientStorage, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SAVE_FAILED", body.Error.Code)
	assert.Equal(t, "Free up space.", body.Error.Remediation)
	assert.Len(t, c.Errors, 1)
}

func TestErrorHidesUntypedFailures(t *testing.T) {
	c, rec := testContext()
	Error(c, errors.New("disk exploded"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk exploded")
}

func TestAttachment(t *testing.T) {
	c, rec := testContext()
	Attachment(c, "roster_20261017.csv", "text/csv; charset=utf-8", []byte("a,b\n"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="roster_20261017.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}
