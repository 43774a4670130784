package marker

import (
	"context"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

func rgba(t *testing.T, c color.Color) color.RGBA {
	t.Helper()
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestRender_CityBadge(t *testing.T) {
	r := NewRenderer(nil)
	desc := plotmap.DescribeCityIcon("Jeddah", 7, 48)

	img, err := r.Render(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	corner := rgba(t, img.At(0, 0))
	assert.Equal(t, uint8(0), corner.A, "corners stay transparent")

	body := rgba(t, img.At(24, 8))
	assert.InDelta(t, float64(desc.Fill.R), float64(body.R), 12)
	assert.InDelta(t, float64(desc.Fill.G), float64(body.G), 12)
	assert.InDelta(t, float64(desc.Fill.B), float64(body.B), 12)
	assert.Equal(t, uint8(0xFF), body.A)
}

func TestRender_LongLabelStillRenders(t *testing.T) {
	r := NewRenderer(nil)
	_, err := r.Render(context.Background(), plotmap.DescribeCityIcon("Riyadh", 5000, 48))
	assert.NoError(t, err)
}

func TestRender_PlotPin(t *testing.T) {
	r := NewRenderer(nil)
	desc := plotmap.DescribePlotIcon(48)
	img, err := r.Render(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), rgba(t, img.At(0, 47)).A)
	assert.Equal(t, uint8(0), rgba(t, img.At(47, 0)).A)

	// white dot in the head of the pin
	dot := rgba(t, img.At(24, 17))
	assert.Greater(t, dot.R, uint8(0xE0))
	assert.Greater(t, dot.B, uint8(0xE0))

	// body below the head is opaque fill
	body := rgba(t, img.At(24, 32))
	assert.Equal(t, uint8(0xFF), body.A)
	assert.InDelta(t, float64(desc.Fill.R), float64(body.R), 16)
}

func TestRender_Errors(t *testing.T) {
	r := NewRenderer(nil)

	_, err := r.Render(context.Background(), plotmap.IconDescriptor{Name: "x", Kind: plotmap.IconKindCity})
	assert.True(t, errors.IsCode(err, errors.ErrCodeIconLoadFailed))

	_, err = r.Render(context.Background(), plotmap.IconDescriptor{Name: "x", Kind: "star", Size: 10})
	assert.True(t, errors.IsCode(err, errors.ErrCodeIconLoadFailed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, plotmap.DescribePlotIcon(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderPNG_RoundTrip(t *testing.T) {
	r := NewRenderer(nil)
	data, err := r.RenderPNG(context.Background(), plotmap.DescribeCityIcon("Dammam", 3, 32))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	img, err := DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	_, err = DecodePNG([]byte("nope"))
	assert.Error(t, err)
}

func TestRender_Concurrent(t *testing.T) {
	r := NewRenderer(nil)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Render(context.Background(), plotmap.DescribeCityIcon("Yanbu", i, 40))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

//Personal.AI order the ending
