package dto

import "time"

// FileExportResponse describes a stored export and where to download it.
type FileExportResponse struct {
	Filename    string    `json:"filename"`
	Kind        string    `json:"kind"`
	SizeBytes   int       `json:"sizeBytes"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LinkPreviewResponse tells the teacher what a link export would drop.
type LinkPreviewResponse struct {
	LessonID       string `json:"lessonId"`
	WillStripAudio bool   `json:"willStripAudio"`
	Warning        string `json:"warning,omitempty"`
}

// LinkExportResponse is a compressed share link.
type LinkExportResponse struct {
	LessonID      string `json:"lessonId"`
	URL           string `json:"url"`
	Token         string `json:"token"`
	TokenLength   int    `json:"tokenLength"`
	MaxLength     int    `json:"maxLength"`
	AudioStripped bool   `json:"audioStripped"`
}

// PublishResponse reports a published classroom snapshot.
type PublishResponse struct {
	Filename    string `json:"filename"`
	PublicPath  string `json:"publicPath"`
	GeneratedAt int64  `json:"generatedAt"`
	Students    int    `json:"students"`
	Lessons     int    `json:"lessons"`
	SizeBytes   int    `json:"sizeBytes"`
}
