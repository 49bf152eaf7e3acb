package models

import "time"

// Mode is the top-level screen the session is in.
type Mode string

const (
	ModeRoleSelect       Mode = "ROLE_SELECT"
	ModeTeacherDashboard Mode = "TEACHER_DASHBOARD"
	ModeTeacherEditor    Mode = "TEACHER_EDITOR"
	ModeStudentPortal    Mode = "STUDENT_PORTAL"
)

// Navigation holds the inputs a student URL can carry. All fields are optional.
type Navigation struct {
	StudentID  string `json:"studentId,omitempty"`
	DataFile   string `json:"dataFile,omitempty"`
	ShareToken string `json:"shareToken,omitempty"`
}

// LoadState is the student-side load state machine.
type LoadState string

const (
	LoadInit        LoadState = "INIT"
	LoadFetching    LoadState = "FETCHING"
	LoadReady       LoadState = "READY"
	LoadFetchFailed LoadState = "FETCH_FAILED"
	LoadParseFailed LoadState = "PARSE_FAILED"
)

// DataSource names where a student view was built from.
type DataSource string

const (
	SourceNetwork DataSource = "network"
	SourceLink    DataSource = "link"
	SourceLocal   DataSource = "local"
	SourceCache   DataSource = "cache"
	SourceUpload  DataSource = "upload"
	SourceNone    DataSource = "none"
)

// StudentView is the read-only result of a student-side load.
type StudentView struct {
	State    LoadState      `json:"state"`
	Source   DataSource     `json:"source"`
	Epoch    uint64         `json:"epoch"`
	Package  StudentPackage `json:"package"`
	Warnings []string       `json:"warnings,omitempty"`
	LoadedAt time.Time      `json:"loadedAt"`
}

// SessionState is the mode of one session plus the lesson open in the editor.
type SessionState struct {
	ID           string     `json:"id"`
	Mode         Mode       `json:"mode"`
	EditLessonID string     `json:"editLessonId,omitempty"`
	Navigation   Navigation `json:"navigation"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
