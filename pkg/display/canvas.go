package display

import (
	"image"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Geometry of the 2.13" panel and positions used by the layouts.
const (
	Width  = 250
	Height = 122

	textX   = 0
	textY   = 40
	bannerY = 80
	logoX   = 40
	logoY   = 30
	logoW   = 150
	logoH   = 56
)

// Banner is printed under the logo on the splash screen.
const Banner = "   IoT Made Easy!"

// Drawer receives composed frames, e.g. a panel driver.
type Drawer interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Canvas composes 1-bit frames and pushes them to a Drawer.
type Canvas struct {
	Out  Drawer
	Face font.Face
	Logo string

	frame *image1bit.VerticalLSB
}

// NewCanvas creates a Canvas.
func NewCanvas(out Drawer) *Canvas {
	return &Canvas{
		Out:   out,
		Face:  basicfont.Face7x13,
		Logo:  "WisBlock",
		frame: image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height)),
	}
}

// Frame returns the last composed frame.
func (c *Canvas) Frame() image.Image {
	return c.frame
}

// Splash implements Panel.
func (c *Canvas) Splash() error {
	c.clear()
	c.drawLogo(45, 10)
	c.drawText(textX, bannerY, Banner)
	return c.flush()
}

// ShowText implements Panel.
func (c *Canvas) ShowText(text string) error {
	c.clear()
	c.drawText(textX, textY, text)
	return c.flush()
}

// ShowLogo implements Panel.
func (c *Canvas) ShowLogo() error {
	c.clear()
	c.drawLogo(logoX, logoY)
	return c.flush()
}

func (c *Canvas) clear() {
	draw.Draw(c.frame, c.frame.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
}

// drawText prints text with character wrapping at the right edge.
// y is the baseline of the first line.
func (c *Canvas) drawText(x, y int, text string) {
	d := font.Drawer{
		Dst:  c.frame,
		Src:  &image.Uniform{C: image1bit.On},
		Face: c.Face,
	}
	lineHeight := c.Face.Metrics().Height.Ceil()
	d.Dot = fixed.P(x, y)
	for _, r := range text {
		adv, ok := c.Face.GlyphAdvance(r)
		if !ok {
			r = '?'
			adv, _ = c.Face.GlyphAdvance(r)
		}
		if (d.Dot.X + adv).Ceil() > Width {
			y += lineHeight
			if y > Height {
				return
			}
			d.Dot = fixed.P(x, y)
		}
		d.DrawString(string(r))
	}
}

func (c *Canvas) drawLogo(x, y int) {
	r := image.Rect(x, y, x+logoW, y+logoH)
	on := &image.Uniform{C: image1bit.On}
	for i := 0; i < 2; i++ {
		draw.Draw(c.frame, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1), on, image.Point{}, draw.Src)
		draw.Draw(c.frame, image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i), on, image.Point{}, draw.Src)
		draw.Draw(c.frame, image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y), on, image.Point{}, draw.Src)
		draw.Draw(c.frame, image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y), on, image.Point{}, draw.Src)
	}
	adv := font.MeasureString(c.Face, c.Logo).Ceil()
	c.drawText(x+(logoW-adv)/2, y+logoH/2+c.Face.Metrics().Ascent.Ceil()/2, c.Logo)
}

func (c *Canvas) flush() error {
	if c.Out == nil {
		return nil
	}
	return c.Out.Draw(c.frame.Bounds(), c.frame, image.Point{})
}

// PNGFile writes every frame to a PNG file, for running without a panel.
type PNGFile struct {
	Path string
}

// Draw implements Drawer.
func (p *PNGFile) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	dst := image.NewGray(r)
	draw.Draw(dst, r, src, sp, draw.Src)
	f, err := os.Create(p.Path)
	if err != nil {
		return err
	}
	if err = png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
