// Package display selects what the e-paper panel shows and composes
// the bitmap for it.
package display

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/userdata"
)

// Selector values besides the message slots 1..4.
const (
	SelectNone = 0
	SelectLogo = 5
)

// ErrSelector indicates a selector value out of [0, 5].
var ErrSelector = errors.New("selector out of range")

// Source provides slot content.
type Source interface {
	Message(slot int) (userdata.Slot, error)
}

// Panel renders content. Bitmap composition and refresh timing are
// up to the implementation.
type Panel interface {
	// Splash shows the power-on screen.
	Splash() error
	// ShowText shows a message.
	ShowText(text string) error
	// ShowLogo shows the default image.
	ShowLogo() error
}

// Presenter maps the selector to panel content.
type Presenter struct {
	Source Source
	Panel  Panel

	lock     sync.Mutex
	selector int
}

// NewPresenter creates a Presenter.
func NewPresenter(src Source, panel Panel) *Presenter {
	return &Presenter{Source: src, Panel: panel}
}

// Select sets the selector for the next Switch.
func (p *Presenter) Select(n int) error {
	if n < SelectNone || n > SelectLogo {
		return ErrSelector
	}
	p.lock.Lock()
	p.selector = n
	p.lock.Unlock()
	return nil
}

// Selected returns the current selector.
func (p *Presenter) Selected() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.selector
}

// Switch renders what the selector denotes. The logo selection is
// one-shot: the selector returns to SelectNone afterwards.
func (p *Presenter) Switch() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch n := p.selector; {
	case n == SelectNone:
		return nil
	case n == SelectLogo:
		glog.V(1).Infof("[EPD] Message #%d", n)
		p.selector = SelectNone
		if p.Panel == nil {
			return nil
		}
		return p.Panel.ShowLogo()
	default:
		glog.V(1).Infof("[EPD] Message #%d", n)
		msg, err := p.Source.Message(n)
		if err != nil {
			return err
		}
		if p.Panel == nil {
			return nil
		}
		return p.Panel.ShowText(msg.String())
	}
}

// Show selects and renders in one step.
func (p *Presenter) Show(n int) error {
	if err := p.Select(n); err != nil {
		return err
	}
	return p.Switch()
}
