package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/internal/models"
	"github.com/noah-isme/canto-lessons/internal/repository"
)

func greetingsLesson() models.Lesson {
	return models.Lesson{
		ID:        "l1",
		Title:     "Greetings",
		CreatedAt: 1700000000000,
		Sentences: []models.Sentence{
			{
				ID: "s1",
				Words: []models.Word{
					{Char: "你", Jyutping: []string{"nei5"}, SelectedJyutping: "nei5"},
					{Char: "好", Jyutping: []string{"hou2", "hou3"}, SelectedJyutping: "hou2"},
					{Char: "！", Jyutping: []string{}, SelectedJyutping: ""},
				},
				Translation:      "Hello!",
				AudioBase64:      "data:audio/webm;base64,AAAA",
				Explanation:      "Common greeting",
				ExplanationAudio: "data:audio/webm;base64,BBBB",
			},
			{
				ID:          "s2",
				Words:       []models.Word{{Char: "早", Jyutping: []string{"zou2"}, SelectedJyutping: "zou2"}},
				Translation: "Morning",
			},
		},
	}
}

// newMemoryStore returns an initialised EntityStore over a fresh MemorySubstrate.
func newMemoryStore(t *testing.T) (*EntityStore, *repository.MemorySubstrate) {
	t.Helper()
	substrate := repository.NewMemorySubstrate()
	adapter := NewPersistenceAdapter(substrate, substrate.Legacy(), "", nil, zap.NewNop())
	store := NewEntityStore(adapter, zap.NewNop())
	require.NoError(t, store.Init(context.Background()))
	return store, substrate
}
