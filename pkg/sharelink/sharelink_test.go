package sharelink

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	payload := []byte(`{"id":"l1","title":"飲茶","sentences":[{"id":"s1","words":[{"char":"飲","jyutping":["jam2"],"selectedJyutping":"jam2"}]}]}`)

	token, err := Encode(payload)
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	out, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestEncodeCompressesRepetitiveText(t *testing.T) {
	payload := []byte(strings.Repeat(`{"char":"你","jyutping":["nei5"],"selectedJyutping":"nei5"},`, 200))
	token, err := Encode(payload)
	require.NoError(t, err)
	assert.Less(t, len(token), len(payload)/4)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = Decode("***")
	assert.ErrorIs(t, err, ErrCorruptToken)

	_, err = Decode(base64.RawURLEncoding.EncodeToString([]byte("plain text, not deflate")))
	assert.ErrorIs(t, err, ErrCorruptToken)
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	token, err := Encode(make([]byte, MaxDecodedBytes+10))
	require.NoError(t, err)
	_, err = Decode(token)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestBuildURLAndExtractToken(t *testing.T) {
	link := BuildURL("https://class.example/app/#/old", "abc_DEF-1")
	assert.Equal(t, "https://class.example/app/#/share/abc_DEF-1", link)

	assert.Equal(t, "abc_DEF-1", ExtractToken(link))
	assert.Equal(t, "abc_DEF-1", ExtractToken("  abc_DEF-1 "))
	assert.Equal(t, "abc", ExtractToken("/share/abc?x=1"))
}
