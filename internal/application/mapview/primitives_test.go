package mapview

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

// fakeBus is a minimal event source for OneShot.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[int]Handler
	next     int
}

func newFakeBus() *fakeBus { return &fakeBus{handlers: map[int]Handler{}} }

func (b *fakeBus) subscribe(h Handler) Unsubscribe {
	b.mu.Lock()
	b.next++
	id := b.next
	b.handlers[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *fakeBus) fire() {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(Event{Type: EventLoad})
	}
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

func TestOneShot_RunsLatestActionOnce(t *testing.T) {
	bus := newFakeBus()
	var o OneShot
	var got []string

	assert.True(t, o.Arm(bus.subscribe, func() { got = append(got, "first") }))
	assert.False(t, o.Arm(bus.subscribe, func() { got = append(got, "second") }))
	assert.Equal(t, 1, bus.count())
	assert.True(t, o.Pending())

	bus.fire()
	bus.fire()

	assert.Equal(t, []string{"second"}, got)
	assert.False(t, o.Pending())
	assert.Equal(t, 0, bus.count())
}

func TestOneShot_Cancel(t *testing.T) {
	bus := newFakeBus()
	var o OneShot
	ran := false
	o.Arm(bus.subscribe, func() { ran = true })
	o.Cancel()
	bus.fire()
	assert.False(t, ran)
	assert.Equal(t, 0, bus.count())
}

func TestOneShot_SynchronousFireDuringSubscribe(t *testing.T) {
	var o OneShot
	var unsubbed atomic.Bool
	runs := 0
	o.Arm(func(h Handler) Unsubscribe {
		h(Event{})
		return func() { unsubbed.Store(true) }
	}, func() { runs++ })
	assert.Equal(t, 1, runs)
	assert.True(t, unsubbed.Load())
	assert.False(t, o.Pending())
}

func TestOneShot_RearmAfterFire(t *testing.T) {
	bus := newFakeBus()
	var o OneShot
	runs := 0
	o.Arm(bus.subscribe, func() { runs++ })
	bus.fire()
	assert.True(t, o.Arm(bus.subscribe, func() { runs++ }))
	bus.fire()
	assert.Equal(t, 2, runs)
}

func TestFilter_Matches(t *testing.T) {
	props := map[string]interface{}{"city": "Jeddah", "plotCount": 3}

	assert.True(t, MatchAll.Matches(props))
	assert.False(t, MatchNothing.Matches(props))
	assert.True(t, MatchNothing.IsMatchNothing())
	assert.False(t, Eq("city", "Jeddah").IsMatchNothing())

	assert.True(t, Eq("city", "Jeddah").Matches(props))
	assert.False(t, Eq("city", "Riyadh").Matches(props))
	assert.True(t, Filter{"!=", "city", "Riyadh"}.Matches(props))
	assert.True(t, Filter{"==", "plotCount", 3}.Matches(props))
	assert.True(t, Filter{"in", "city", "Dammam", "Jeddah"}.Matches(props))
	assert.False(t, Filter{"in", "city", "Dammam"}.Matches(props))
	assert.False(t, Filter{"bogus"}.Matches(props))
	assert.False(t, Eq("missing", "x").Matches(props))
}

func TestIconRef_Resolve(t *testing.T) {
	ref := IconRef{Name: "fallback", Property: "city", Cases: map[string]string{"Jeddah": "city-jeddah-2"}}
	assert.Equal(t, "city-jeddah-2", ref.Resolve(map[string]interface{}{"city": "Jeddah"}))
	assert.Equal(t, "fallback", ref.Resolve(map[string]interface{}{"city": "Abha"}))
	assert.ElementsMatch(t, []string{"fallback", "city-jeddah-2"}, ref.Names())

	static := IconRef{Name: plotmap.PlotIconName}
	assert.Equal(t, plotmap.PlotIconName, static.Resolve(nil))
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

type countingRenderer struct {
	calls atomic.Int32
	fail  string
}

func (r *countingRenderer) Render(ctx context.Context, d plotmap.IconDescriptor) (image.Image, error) {
	r.calls.Add(1)
	if d.Name == r.fail {
		return nil, errors.New("boom")
	}
	return image.NewRGBA(image.Rect(0, 0, d.Size, d.Size)), nil
}

func TestIconSet_MemoisesDescriptorsAndImages(t *testing.T) {
	set := NewIconSet(32)
	a := set.City("Jeddah", 3)
	b := set.City("Jeddah", 3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Name, set.City("Jeddah", 4).Name)

	data := plotmap.CityData{
		"Jeddah": {{ID: "a"}, {ID: "b"}},
		"Riyadh": {{ID: "c"}},
		"Empty":  nil,
	}
	descs := set.Required(data)
	require.Len(t, descs, 3)
	assert.Equal(t, plotmap.PlotIconName, descs[2].Name)

	r := &countingRenderer{}
	imgs, err := set.Load(context.Background(), r, descs)
	require.NoError(t, err)
	assert.Len(t, imgs, 3)
	assert.Equal(t, int32(3), r.calls.Load())

	_, err = set.Load(context.Background(), r, descs)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.calls.Load())
	assert.Equal(t, 3, set.Len())

	img, ok := set.Image(plotmap.PlotIconName)
	require.True(t, ok)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestIconSet_RetainDropsStaleIcons(t *testing.T) {
	set := NewIconSet(16)
	r := &countingRenderer{}
	before := set.Required(plotmap.CityData{"Jeddah": {{ID: "a"}, {ID: "b"}}, "Riyadh": {{ID: "c"}}})
	_, err := set.Load(context.Background(), r, before)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	after := set.Required(plotmap.CityData{"Jeddah": {{ID: "a"}}})
	_, err = set.Load(context.Background(), r, after)
	require.NoError(t, err)
	set.Retain(after)

	assert.Equal(t, 2, set.Len())
	_, ok := set.Image(plotmap.CityIconName("Riyadh", 1))
	assert.False(t, ok)
	_, ok = set.Image(plotmap.CityIconName("Jeddah", 2))
	assert.False(t, ok)
	_, ok = set.Image(plotmap.CityIconName("Jeddah", 1))
	assert.True(t, ok)
	_, ok = set.Image(plotmap.PlotIconName)
	assert.True(t, ok)
}

func TestIconSet_LoadFailureCachesNothing(t *testing.T) {
	set := NewIconSet(16)
	data := plotmap.CityData{"Jeddah": {{ID: "a"}}}
	descs := set.Required(data)
	r := &countingRenderer{fail: plotmap.PlotIconName}

	imgs, err := set.Load(context.Background(), r, descs)
	require.Error(t, err)
	assert.Nil(t, imgs)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIconLoadFailed))
	assert.Equal(t, 0, set.Len())
}

//Personal.AI order the ending
