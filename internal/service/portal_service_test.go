package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canto-lessons/internal/models"
)

func TestPortalServiceTracksSessionsSeparately(t *testing.T) {
	store, _ := newMemoryStore(t)
	srv := serveBody(t, http.StatusOK, amySnapshot)
	portal := NewPortalService(store, NewSnapshotFetcher(srv.URL, time.Second, nil, nil), nil, PortalConfig{}, nil, nil)
	ctx := context.Background()

	first, view, err := portal.Load(ctx, "", models.Navigation{StudentID: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, uint64(1), view.Epoch)

	again, view, err := portal.Load(ctx, first, models.Navigation{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, uint64(2), view.Epoch)

	second, view, err := portal.Load(ctx, "other-tab", models.Navigation{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "other-tab", second)
	assert.Equal(t, uint64(1), view.Epoch, "epochs are per session")

	state, current := portal.State(first)
	assert.Equal(t, models.LoadReady, state)
	assert.Equal(t, "Amy", current.Package.StudentName)

	state, current = portal.State("never-seen")
	assert.Equal(t, models.LoadInit, state)
	assert.Nil(t, current)
}

func TestPortalServicePrunesIdleSessions(t *testing.T) {
	store, _ := newMemoryStore(t)
	portal := NewPortalService(store, &failingFetcher{}, nil, PortalConfig{IdleTTL: time.Minute}, nil, nil)
	clock := time.Unix(1000, 0)
	portal.now = func() time.Time { return clock }

	id, _, err := portal.Upload(context.Background(), "", []byte(`{"studentName":"Amy","lessons":[]}`), "")
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 0, portal.Prune())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, portal.Prune())
	state, _ := portal.State(id)
	assert.Equal(t, models.LoadInit, state)
}
