package dto

import "github.com/noah-isme/canto-lessons/internal/models"

// WordPayload is one annotated token in a lesson request.
type WordPayload struct {
	Char             string   `json:"char" validate:"required"`
	Jyutping         []string `json:"jyutping" validate:"omitempty,dive,required"`
	SelectedJyutping string   `json:"selectedJyutping"`
}

// SentencePayload is one sentence in a lesson request. Id is optional on create.
type SentencePayload struct {
	ID               string        `json:"id" validate:"omitempty,max=64"`
	Words            []WordPayload `json:"words" validate:"dive"`
	Translation      string        `json:"translation"`
	AudioBase64      string        `json:"audioBase64,omitempty"`
	Explanation      string        `json:"explanation,omitempty"`
	ExplanationAudio string        `json:"explanationAudio,omitempty"`
}

// LessonRequest captures POST /lessons and PUT /lessons/:id payloads.
type LessonRequest struct {
	ID        string            `json:"id" validate:"omitempty,max=64"`
	Title     string            `json:"title" validate:"required,max=200"`
	CreatedAt int64             `json:"createdAt" validate:"omitempty,min=0"`
	MediaURL  string            `json:"mediaUrl"`
	Sentences []SentencePayload `json:"sentences" validate:"dive"`
}

// ToModel converts the request into a lesson. Media is normalised by the service.
func (r LessonRequest) ToModel() models.Lesson {
	lesson := models.Lesson{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		MediaURL:  r.MediaURL,
		Sentences: make([]models.Sentence, 0, len(r.Sentences)),
	}
	for _, s := range r.Sentences {
		words := make([]models.Word, 0, len(s.Words))
		for _, w := range s.Words {
			jyutping := w.Jyutping
			if jyutping == nil {
				jyutping = []string{}
			}
			words = append(words, models.Word{Char: w.Char, Jyutping: jyutping, SelectedJyutping: w.SelectedJyutping})
		}
		lesson.Sentences = append(lesson.Sentences, models.Sentence{
			ID:               s.ID,
			Words:            words,
			Translation:      s.Translation,
			AudioBase64:      s.AudioBase64,
			Explanation:      s.Explanation,
			ExplanationAudio: s.ExplanationAudio,
		})
	}
	return lesson
}

// LessonSummary is the list view of a lesson.
type LessonSummary struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	CreatedAt     int64            `json:"createdAt"`
	MediaType     models.MediaKind `json:"mediaType,omitempty"`
	SentenceCount int              `json:"sentenceCount"`
	HasAudio      bool             `json:"hasAudio"`
}

// NewLessonSummary builds the list view for a lesson.
func NewLessonSummary(l models.Lesson) LessonSummary {
	return LessonSummary{
		ID:            l.ID,
		Title:         l.Title,
		CreatedAt:     l.CreatedAt,
		MediaType:     l.MediaType,
		SentenceCount: len(l.Sentences),
		HasAudio:      l.HasAudio(),
	}
}
