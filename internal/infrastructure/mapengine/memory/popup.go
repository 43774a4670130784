package memory

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
)

// Popup is an overlay created by Engine.CreatePopup.
type Popup struct {
	id     string
	at     orb.Point
	engine *Engine

	mu      sync.Mutex
	content *property.Property
	actions mapview.PopupActions
}

func (p *Popup) ID() string { return p.id }

// At returns the anchor position.
func (p *Popup) At() orb.Point { return p.at }

// Remove detaches the popup from its engine.
func (p *Popup) Remove() {
	e := p.engine
	e.mu.Lock()
	if _, ok := e.popups[p.id]; ok {
		delete(e.popups, p.id)
		e.record("closePopup:%s", p.id)
	}
	e.mu.Unlock()
}

// Content returns the rendered property, if any.
func (p *Popup) Content() (property.Property, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.content == nil {
		return property.Property{}, false
	}
	return *p.content, true
}

// PressClose runs the close action offered to the popup.
func (p *Popup) PressClose() {
	p.mu.Lock()
	fn := p.actions.OnClose
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PressView runs the view action.  It reports false when none was offered.
func (p *Popup) PressView() bool {
	p.mu.Lock()
	fn := p.actions.OnView
	p.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// PopupRenderer stores content in memory popups.
type PopupRenderer struct{}

// Render implements mapview.PopupRenderer.
func (PopupRenderer) Render(handle mapview.OverlayHandle, p property.Property, actions mapview.PopupActions) error {
	mp, ok := handle.(*Popup)
	if !ok {
		return nil
	}
	mp.mu.Lock()
	mp.content = &p
	mp.actions = actions
	mp.mu.Unlock()
	return nil
}

//Personal.AI order the ending
