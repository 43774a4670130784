package mapview_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/mapengine/memory"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

func newManager(token string, renderer mapview.IconRenderer) (*mapview.SessionManager, *[]*memory.Engine) {
	var engines []*memory.Engine
	factory := memory.Factory(func(e *memory.Engine) { engines = append(engines, e) })
	mgr := mapview.NewSessionManager(func() *mapview.Controller {
		return mapview.NewController(mapview.Options{AccessToken: token, IconSize: 16}, factory, renderer, memory.PopupRenderer{}, nil, nil)
	}, nil, nil)
	return mgr, &engines
}

func TestSessionManager_Lifecycle(t *testing.T) {
	mgr, engines := newManager("pk.test", &stubRenderer{})
	ctx := context.Background()

	s, err := mgr.Create(ctx, sampleData())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, mgr.Len())
	require.Len(t, *engines, 1)

	got, err := mgr.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.True(t, got.Controller.Snapshot().LayersReady)

	require.NoError(t, mgr.Delete(s.ID))
	assert.Equal(t, 0, mgr.Len())
	assert.True(t, (*engines)[0].Removed())

	_, err = mgr.Get(s.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSessionNotFound))
	assert.True(t, apperrors.IsNotFound(mgr.Delete(s.ID)))
}

func TestSessionManager_PlaceholderWithoutToken(t *testing.T) {
	mgr, engines := newManager("", &stubRenderer{})
	s, err := mgr.Create(context.Background(), sampleData())
	require.NoError(t, err)
	assert.True(t, s.Controller.Snapshot().Placeholder)
	assert.Empty(t, *engines)
}

func TestSessionManager_IconFailureAbortsCreate(t *testing.T) {
	mgr, engines := newManager("pk.test", &stubRenderer{err: errors.New("no font")})
	_, err := mgr.Create(context.Background(), sampleData())
	require.Error(t, err)
	assert.Equal(t, 0, mgr.Len())
	require.Len(t, *engines, 1)
	assert.True(t, (*engines)[0].Removed())
}

func TestSessionManager_SweepRemovesIdle(t *testing.T) {
	mgr, _ := newManager("pk.test", &stubRenderer{})
	ctx := context.Background()
	old, err := mgr.Create(ctx, sampleData())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	fresh, err := mgr.Create(ctx, sampleData())
	require.NoError(t, err)

	assert.Equal(t, 1, mgr.Sweep(20*time.Millisecond))
	assert.Equal(t, []string{fresh.ID}, mgr.IDs())
	assert.False(t, old.Controller.Snapshot().Mounted)
}

func TestSessionManager_BroadcastAndCloseAll(t *testing.T) {
	mgr, engines := newManager("pk.test", &stubRenderer{})
	ctx := context.Background()
	a, err := mgr.Create(ctx, sampleData())
	require.NoError(t, err)
	_, err = mgr.Create(ctx, sampleData())
	require.NoError(t, err)

	data := plotmap.CityData{"Dammam": {{ID: "d1", City: "Dammam", Lat: 26.4, Lng: 50.1}}}
	mgr.Broadcast(ctx, data)
	assert.Equal(t, 1, a.Controller.Snapshot().Plots)
	for _, e := range *engines {
		assert.Len(t, e.VisibleFeatures(mapview.ClusterLayerID), 1)
	}

	mgr.CloseAll()
	assert.Equal(t, 0, mgr.Len())
	for _, e := range *engines {
		assert.True(t, e.Removed())
	}
}

//Personal.AI order the ending
