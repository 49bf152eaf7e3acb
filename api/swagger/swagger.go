package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Canto Lessons API",
        "description": "Lesson authoring, assignment and distribution for a Cantonese reading tool. Teacher routes expect the X-Teacher-PIN header.",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "TeacherPIN": {"type": "apiKey", "in": "header", "name": "X-Teacher-PIN"}
    },
    "tags": [
        {"name": "Lessons", "description": "Lesson authoring"},
        {"name": "Students", "description": "Roster and lesson assignment"},
        {"name": "Exports", "description": "File exports, share links and snapshot publication"},
        {"name": "Portal", "description": "Student-side loading of assigned lessons"},
        {"name": "Session", "description": "Screen mode for one browser session"},
        {"name": "Annotations", "description": "AI-assisted pronunciation annotation"}
    ],
    "paths": {
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List lessons, newest first",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "full", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Lessons"],
                "summary": "Create a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Lesson"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Lesson id already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "507": {"description": "Save failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Get a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Lessons"],
                "summary": "Replace a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Lesson"}}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Lessons"],
                "summary": "Delete a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students, newest first",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Student"}}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Student id already exists"}}
            }
        },
        "/students/{id}/lessons/{lessonId}": {
            "post": {
                "tags": ["Students"],
                "summary": "Assign a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "lessonId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Student or lesson not found"}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Unassign a lesson",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "lessonId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/exports/lessons/{id}/link": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export a lesson as a compressed share link",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "confirmStrip", "in": "query", "type": "boolean"},
                    {"name": "preview", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "412": {"description": "Lesson has audio and confirmStrip was not set"},
                    "413": {"description": "Link would be too long"}
                }
            }
        },
        "/exports/snapshot/publish": {
            "post": {
                "tags": ["Exports"],
                "summary": "Publish the classroom snapshot at the site root",
                "security": [{"TeacherPIN": []}],
                "responses": {"201": {"description": "Published"}}
            }
        },
        "/exports/roster.csv": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the roster with assignments",
                "security": [{"TeacherPIN": []}],
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a stored export through a signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File"}, "404": {"description": "Invalid or expired token"}}
            }
        },
        "/portal": {
            "get": {
                "tags": ["Portal"],
                "summary": "Resolve the student view",
                "parameters": [
                    {"name": "student", "in": "query", "type": "string"},
                    {"name": "data", "in": "query", "type": "string"},
                    {"name": "share", "in": "query", "type": "string"},
                    {"name": "url", "in": "query", "type": "string"},
                    {"name": "X-Portal-Session", "in": "header", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Fetched file is not a known shape"},
                    "502": {"description": "Snapshot unavailable and no local data"}
                }
            }
        },
        "/portal/upload": {
            "post": {
                "tags": ["Portal"],
                "summary": "Load a hand-picked data file",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "student", "in": "query", "type": "string"},
                    {"name": "file", "in": "formData", "type": "file"}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Invalid format"}}
            }
        },
        "/portal/share/{token}": {
            "get": {
                "tags": ["Portal"],
                "summary": "Decode a share link",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Damaged link"}}
            }
        },
        "/session/teacher": {
            "post": {
                "tags": ["Session"],
                "summary": "Enter teacher mode",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TeacherSessionRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "PIN rejected"}}
            }
        },
        "/annotations": {
            "post": {
                "tags": ["Annotations"],
                "summary": "Split text into annotated sentences",
                "security": [{"TeacherPIN": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnnotateRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "502": {"description": "Annotation service failed"}}
            }
        }
    },
    "definitions": {
        "Word": {
            "type": "object",
            "properties": {
                "char": {"type": "string"},
                "jyutping": {"type": "array", "items": {"type": "string"}},
                "selectedJyutping": {"type": "string"}
            },
            "required": ["char"]
        },
        "Sentence": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "words": {"type": "array", "items": {"$ref": "#/definitions/Word"}},
                "translation": {"type": "string"},
                "audioBase64": {"type": "string"},
                "explanation": {"type": "string"},
                "explanationAudio": {"type": "string"}
            }
        },
        "Lesson": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "createdAt": {"type": "integer"},
                "mediaUrl": {"type": "string"},
                "mediaType": {"type": "string", "enum": ["image", "video"]},
                "sentences": {"type": "array", "items": {"$ref": "#/definitions/Sentence"}}
            },
            "required": ["title"]
        },
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "assignedLessonIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["name"]
        },
        "TeacherSessionRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "pin": {"type": "string"}
            },
            "required": ["pin"]
        },
        "AnnotateRequest": {
            "type": "object",
            "properties": {"text": {"type": "string"}},
            "required": ["text"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "remediation": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
