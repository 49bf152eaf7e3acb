package models

// MediaKind tags the media reference attached to a lesson.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Word is one token of a sentence with its candidate and chosen pronunciations.
type Word struct {
	Char             string   `json:"char"`
	Jyutping         []string `json:"jyutping"`
	SelectedJyutping string   `json:"selectedJyutping"`
}

// HasValidSelection reports whether SelectedJyutping is one of the candidates,
// or empty when there are none.
func (w Word) HasValidSelection() bool {
	if len(w.Jyutping) == 0 {
		return w.SelectedJyutping == ""
	}
	for _, candidate := range w.Jyutping {
		if candidate == w.SelectedJyutping {
			return true
		}
	}
	return false
}

// Sentence is an ordered run of words with its translation and optional audio.
type Sentence struct {
	ID               string `json:"id"`
	Words            []Word `json:"words"`
	Translation      string `json:"translation"`
	AudioBase64      string `json:"audioBase64,omitempty"`
	Explanation      string `json:"explanation,omitempty"`
	ExplanationAudio string `json:"explanationAudio,omitempty"`
}

// Lesson is the unit a teacher authors and distributes.
type Lesson struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt int64      `json:"createdAt"`
	MediaURL  string     `json:"mediaUrl,omitempty"`
	MediaType MediaKind  `json:"mediaType,omitempty"`
	Sentences []Sentence `json:"sentences"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (l Lesson) Clone() Lesson {
	out := l
	if l.Sentences == nil {
		return out
	}
	out.Sentences = make([]Sentence, len(l.Sentences))
	for i, s := range l.Sentences {
		s.Words = cloneWords(s.Words)
		out.Sentences[i] = s
	}
	return out
}

// HasAudio reports whether any sentence carries recorded audio.
func (l Lesson) HasAudio() bool {
	for _, s := range l.Sentences {
		if s.AudioBase64 != "" || s.ExplanationAudio != "" {
			return true
		}
	}
	return false
}

// WithoutAudio returns a copy with every audio field cleared.
func (l Lesson) WithoutAudio() Lesson {
	out := l.Clone()
	for i := range out.Sentences {
		out.Sentences[i].AudioBase64 = ""
		out.Sentences[i].ExplanationAudio = ""
	}
	return out
}

func cloneWords(words []Word) []Word {
	if words == nil {
		return nil
	}
	out := make([]Word, len(words))
	for i, w := range words {
		if w.Jyutping != nil {
			w.Jyutping = append(make([]string, 0, len(w.Jyutping)), w.Jyutping...)
		}
		out[i] = w
	}
	return out
}

// CloneLessons deep-copies a lesson list.
func CloneLessons(lessons []Lesson) []Lesson {
	out := make([]Lesson, len(lessons))
	for i, l := range lessons {
		out[i] = l.Clone()
	}
	return out
}
