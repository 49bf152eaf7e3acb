package dto

import "github.com/noah-isme/canto-lessons/internal/models"

// AnnotateRequest captures POST /annotations.
type AnnotateRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

// AnnotateArticleRequest captures POST /annotations/article.
type AnnotateArticleRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// AnnotationResponse returns annotated sentences ready to place in a lesson.
type AnnotationResponse struct {
	Title     string            `json:"title,omitempty"`
	Sentences []models.Sentence `json:"sentences"`
	Repaired  int               `json:"repaired"`
}
