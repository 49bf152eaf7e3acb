package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

func TestNormalizeMedia(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		url  string
		kind models.MediaKind
	}{
		{"empty", "  ", "", ""},
		{"data image", "data:image/png;base64,iVBOR", "data:image/png;base64,iVBOR", models.MediaImage},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", "https://www.youtube.com/embed/dQw4w9WgXcQ", models.MediaVideo},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", models.MediaVideo},
		{"youtube shorts", "https://youtube.com/shorts/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", models.MediaVideo},
		{"youtube embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", models.MediaVideo},
		{"vimeo", "https://vimeo.com/76979871", "https://player.vimeo.com/video/76979871", models.MediaVideo},
		{"image file", "https://cdn.example.com/pics/dimsum.JPG", "https://cdn.example.com/pics/dimsum.JPG", models.MediaImage},
		{"video file", "https://cdn.example.com/clip.mp4", "https://cdn.example.com/clip.mp4", models.MediaVideo},
		{"other embed", "https://drive.google.com/file/d/abc/preview", "https://drive.google.com/file/d/abc/preview", models.MediaVideo},
		{"query kept as given", "https://cdn.example.com/a.png?w=640&h=480", "https://cdn.example.com/a.png?w=640&h=480", models.MediaImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url, kind, err := NormalizeMedia(tc.raw)
			assert.NoError(t, err)
			assert.Equal(t, tc.url, url)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestNormalizeMediaRejects(t *testing.T) {
	for _, raw := range []string{
		"data:text/html;base64,PGgxPg==",
		"ftp://example.com/a.png",
		"https://vimeo.com/channels/staffpicks",
		"https://www.youtube.com/channel/abc",
		"not a url",
	} {
		_, _, err := NormalizeMedia(raw)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code), raw)
	}
}
