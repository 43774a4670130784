package plotmap

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func toLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IconKind distinguishes city badges from the shared plot marker.
type IconKind string

const (
	IconKindCity IconKind = "city"
	IconKindPlot IconKind = "plot"
)

// PlotIconName is the engine image name of the plot marker.
const PlotIconName = "plot-marker"

// DefaultIconSize is the edge length of rendered icons in pixels.
const DefaultIconSize = 48

// IconDescriptor fully determines one marker bitmap.
type IconDescriptor struct {
	Name  string     `json:"name"`
	Kind  IconKind   `json:"kind"`
	City  string     `json:"city,omitempty"`
	Count int        `json:"count,omitempty"`
	Label string     `json:"label,omitempty"`
	Size  int        `json:"size"`
	Fill  color.RGBA `json:"-"`
}

// CityIconName is the engine image name of the badge for city with count
// plots.  The slug keeps names readable; the hash of the raw city keeps
// buckets that only differ in case, spacing or punctuation apart.
func CityIconName(city string, count int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(city))
	if s := iconSlug(city); s != "" {
		return fmt.Sprintf("city-%s-%08x-%d", s, h.Sum32(), count)
	}
	return fmt.Sprintf("city-%08x-%d", h.Sum32(), count)
}

// iconSlug reduces city to [a-z0-9-] so the result is a safe image and
// object name.  It is empty for non-latin names.
func iconSlug(city string) string {
	return strings.Trim(slugRe.ReplaceAllString(toLower(city), "-"), "-")
}

// DescribeCityIcon is a pure function of (city, count).  Callers memoise it.
func DescribeCityIcon(city string, count, size int) IconDescriptor {
	if size <= 0 {
		size = DefaultIconSize
	}
	return IconDescriptor{
		Name:  CityIconName(city, count),
		Kind:  IconKindCity,
		City:  city,
		Count: count,
		Label: badgeLabel(count),
		Size:  size,
		Fill:  cityColor(city),
	}
}

// DescribePlotIcon returns the shared plot marker descriptor.
func DescribePlotIcon(size int) IconDescriptor {
	if size <= 0 {
		size = DefaultIconSize
	}
	return IconDescriptor{
		Name: PlotIconName,
		Kind: IconKindPlot,
		Size: size,
		Fill: color.RGBA{R: 0xE6, G: 0x5A, B: 0x1E, A: 0xFF},
	}
}

func badgeLabel(count int) string {
	if count > 999 {
		return "999+"
	}
	return strconv.Itoa(count)
}

// cityPalette keeps neighbouring cities visually distinct.
var cityPalette = []color.RGBA{
	{R: 0x1F, G: 0x6F, B: 0xB4, A: 0xFF},
	{R: 0x2E, G: 0x8B, B: 0x57, A: 0xFF},
	{R: 0x8E, G: 0x44, B: 0xAD, A: 0xFF},
	{R: 0xC0, G: 0x39, B: 0x2B, A: 0xFF},
	{R: 0xD3, G: 0x84, B: 0x00, A: 0xFF},
	{R: 0x16, G: 0xA0, B: 0x85, A: 0xFF},
	{R: 0x2C, G: 0x3E, B: 0x50, A: 0xFF},
	{R: 0xB0, G: 0x3A, B: 0x7A, A: 0xFF},
}

func cityColor(city string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(city))
	return cityPalette[h.Sum32()%uint32(len(cityPalette))]
}

//Personal.AI order the ending
