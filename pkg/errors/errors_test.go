package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", Clone(ErrExportTooLarge, "too big"))
	appErr := FromError(err)
	assert.Equal(t, ErrExportTooLarge.Code, appErr.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.Status)
	assert.Equal(t, "too big", appErr.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := Clone(ErrInvalidFormat, "bad json")
	outer := Wrap(inner, ErrSnapshotUnavailable.Code, ErrSnapshotUnavailable.Status, "fetch failed")
	assert.True(t, HasCode(outer, ErrInvalidFormat.Code))
	assert.True(t, HasCode(outer, ErrSnapshotUnavailable.Code))
	assert.False(t, HasCode(outer, ErrNotFound.Code))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrNotFound.Code))
}

func TestWithRemediationDoesNotMutateOriginal(t *testing.T) {
	withHint := WithRemediation(ErrSnapshotUnavailable, "upload student_data.json")
	assert.Equal(t, "upload student_data.json", withHint.Remediation)
	assert.Empty(t, ErrSnapshotUnavailable.Remediation)
}
