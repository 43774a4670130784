package e2e_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/pkg/client"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

func TestE2E_SessionDrillDown(t *testing.T) {
	ctx := context.Background()
	sessions := env.sdk.Sessions()

	s, err := sessions.Create(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Delete(context.Background(), s.ID) })
	assert.Equal(t, common.ModeAllCities, s.State.Mode)
	assert.False(t, s.State.Placeholder)
	assert.Equal(t, 3, s.State.Cities)

	ids, err := sessions.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, s.ID)

	s, err = sessions.SelectCity(ctx, s.ID, "Riyadh")
	require.NoError(t, err)
	assert.Equal(t, common.ModeCityFocused, s.State.Mode)
	assert.Equal(t, "Riyadh", s.State.SelectedCity)

	// A second selection without going back first is rejected.
	_, err = sessions.SelectCity(ctx, s.ID, "Jeddah")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)

	plots, err := sessions.VisiblePlots(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, plots.Features, 2)

	s, err = sessions.OpenPopup(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.True(t, s.State.PopupOpen)
	require.NotNil(t, s.State.Popup)
	assert.Equal(t, "Riyadh", s.State.Popup.City)

	s, err = sessions.ClosePopup(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, s.State.PopupOpen)

	require.NoError(t, sessions.Resize(ctx, s.ID))

	s, err = sessions.Back(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, common.ModeAllCities, s.State.Mode)
	assert.Empty(t, s.State.SelectedCity)

	require.NoError(t, sessions.Delete(ctx, s.ID))
	_, err = sessions.Get(ctx, s.ID)
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestE2E_ListingChangeReachesLiveSessions(t *testing.T) {
	ctx := context.Background()
	sessions := env.sdk.Sessions()

	before, err := env.comps.Memory.List(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.comps.Memory.Replace(before) })

	s, err := sessions.Create(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Delete(context.Background(), s.ID) })
	require.Equal(t, 3, s.State.Cities)

	watcher := newWatcher()
	changed, err := watcher.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "first poll only records the version")

	extra, err := property.NewProperty("md-1", "", "Madinah Logistics Park", "Madinah", 4100)
	require.NoError(t, err)
	env.comps.Memory.Replace(append(append([]*property.Property{}, before...), extra))

	changed, err = watcher.Poll(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	s, err = sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, s.State.Cities)
	assert.Equal(t, 5, s.State.Plots)

	fc, err := env.sdk.Plots(ctx, "Madinah")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
}

//Personal.AI order the ending
