package mapview

import (
	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// popupState holds the open popup.  handle and prop are both set or both nil.
type popupState struct {
	handle OverlayHandle
	prop   *property.Property
}

func (p popupState) open() bool { return p.handle != nil }

// teardown removes the overlay and clears the state.
func (p *popupState) teardown() {
	if p.handle != nil {
		p.handle.Remove()
	}
	p.handle, p.prop = nil, nil
}

//Personal.AI order the ending
