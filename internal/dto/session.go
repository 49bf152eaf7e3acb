package dto

// TeacherSessionRequest carries the PIN for entering teacher mode.
type TeacherSessionRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=64"`
	PIN       string `json:"pin" validate:"required,max=32"`
}

// OpenEditorRequest switches a session into the lesson editor.
type OpenEditorRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	LessonID  string `json:"lessonId" validate:"omitempty,max=64"`
}

// PortalSessionRequest switches a session into the student portal from a URL.
type PortalSessionRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=64"`
	URL       string `json:"url" validate:"required"`
}

// SessionTransitionRequest is used by transitions that need only the session id.
type SessionTransitionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}
