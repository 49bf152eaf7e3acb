// Package sharelink packs a JSON document into a URL-safe token that fits in
// a link fragment, and unpacks it again.
package sharelink

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// FragmentPrefix precedes the token in the URL fragment of a share link.
const FragmentPrefix = "#/share/"

// MaxDecodedBytes bounds how much a token may inflate to.
const MaxDecodedBytes = 4 << 20

var (
	ErrEmptyToken   = errors.New("share token is empty")
	ErrCorruptToken = errors.New("share token is corrupt")
	ErrTooLarge     = errors.New("share token inflates beyond the allowed size")
)

// Encode deflates payload and returns it as unpadded base64url.
func Encode(payload []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("init deflate: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("deflate payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish deflate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode.
func Decode(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptToken, err)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close() //nolint:errcheck

	out, err := io.ReadAll(io.LimitReader(r, MaxDecodedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptToken, err)
	}
	if len(out) > MaxDecodedBytes {
		return nil, ErrTooLarge
	}
	return out, nil
}

// BuildURL appends the share fragment for token to base.
func BuildURL(base, token string) string {
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + FragmentPrefix + token
}

// ExtractToken accepts either a bare token or a full share URL and returns the token.
func ExtractToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, FragmentPrefix); i >= 0 {
		raw = raw[i+len(FragmentPrefix):]
	} else if strings.HasPrefix(raw, "/share/") {
		raw = strings.TrimPrefix(raw, "/share/")
	}
	if i := strings.IndexAny(raw, "?&#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
