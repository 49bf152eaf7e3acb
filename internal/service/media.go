package service

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/noah-isme/canto-lessons/internal/models"
	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
)

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	vimeoIDPattern   = regexp.MustCompile(`^[0-9]{4,12}$`)

	imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}}
	videoExtensions = map[string]struct{}{".mp4": {}, ".webm": {}, ".mov": {}, ".m4v": {}}
)

// NormalizeMedia turns a pasted media reference into the stored URL and its
// kind. Video page links become embed URLs and any other http(s) link is kept
// as given and treated as an embed. An empty input means no media.
func NormalizeMedia(raw string) (string, models.MediaKind, error) {
	mediaURL, kind, _, err := normalizeMedia(raw)
	return mediaURL, kind, err
}

// normalizeMedia also reports whether the kind was guessed because the link
// matched no known host or file extension.
func normalizeMedia(raw string) (string, models.MediaKind, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false, nil
	}

	if strings.HasPrefix(raw, "data:") {
		if strings.HasPrefix(raw, "data:image/") && strings.Contains(raw, ",") {
			return raw, models.MediaImage, false, nil
		}
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "only image data URLs can be embedded")
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "media must be an image data URL or an http(s) link")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if id := youtubeID(u); id != "" {
			return "https://www.youtube.com/embed/" + id, models.MediaVideo, false, nil
		}
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "could not find a video id in the YouTube link")
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); youtubeIDPattern.MatchString(id) {
			return "https://www.youtube.com/embed/" + id, models.MediaVideo, false, nil
		}
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "could not find a video id in the YouTube link")
	case "vimeo.com", "player.vimeo.com":
		if id := path.Base(u.Path); vimeoIDPattern.MatchString(id) {
			return "https://player.vimeo.com/video/" + id, models.MediaVideo, false, nil
		}
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "could not find a video id in the Vimeo link")
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := imageExtensions[ext]; ok {
		return raw, models.MediaImage, false, nil
	}
	if _, ok := videoExtensions[ext]; ok {
		return raw, models.MediaVideo, false, nil
	}
	return raw, models.MediaVideo, true, nil
}

func youtubeID(u *url.URL) string {
	if v := u.Query().Get("v"); youtubeIDPattern.MatchString(v) {
		return v
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 2 {
		switch segments[0] {
		case "embed", "shorts", "live", "v":
			if youtubeIDPattern.MatchString(segments[1]) {
				return segments[1]
			}
		}
	}
	return ""
}
