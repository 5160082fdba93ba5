// Package imagegen draws the images served in place of missing plots.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Default plot dimensions, matching the rotated UK domain plots.
const (
	DefaultWidth  = 800
	DefaultHeight = 640

	MinSize = 64
	MaxSize = 4096
)

const unavailableText = "Data Unavailable"

var (
	fontTitle   *opentype.Font
	fontCaption *opentype.Font
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		fontTitle, fontErr = opentype.Parse(gobold.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", fontErr)
			return
		}
		fontCaption, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", fontErr)
		}
	})
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Spec describes one placeholder image.
type Spec struct {
	Width   int
	Height  int
	Caption string // drawn under the title, e.g. the plot that is missing
}

func (s Spec) normalize() (Spec, error) {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.Width < MinSize || s.Width > MaxSize || s.Height < MinSize || s.Height > MaxSize {
		return s, fmt.Errorf("placeholder size %dx%d outside %d..%d", s.Width, s.Height, MinSize, MaxSize)
	}
	return s, nil
}

// Placeholder renders a grey "Data Unavailable" PNG.
func Placeholder(spec Spec) ([]byte, error) {
	spec, err := spec.normalize()
	if err != nil {
		return nil, err
	}
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	bg := color.RGBA{238, 238, 238, 255}
	border := color.RGBA{190, 190, 190, 255}
	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			c := bg
			if x < 2 || y < 2 || x >= spec.Width-2 || y >= spec.Height-2 {
				c = border
			}
			img.SetRGBA(x, y, c)
		}
	}

	titleSize := float64(spec.Width) / 14
	title, err := newFace(fontTitle, titleSize)
	if err != nil {
		return nil, fmt.Errorf("create title face: %w", err)
	}
	defer title.Close()
	mid := spec.Height / 2
	drawCentered(img, unavailableText, mid, color.RGBA{110, 110, 110, 255}, title)

	if spec.Caption != "" {
		caption, err := newFace(fontCaption, titleSize/2.2)
		if err != nil {
			return nil, fmt.Errorf("create caption face: %w", err)
		}
		defer caption.Close()
		drawCentered(img, spec.Caption, mid+int(titleSize), color.RGBA{140, 140, 140, 255}, caption)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCentered draws text horizontally centred with its baseline at y.
func drawCentered(img *image.RGBA, text string, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(text)
	x := (fixed.I(img.Bounds().Dx()) - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(y)}
	d.DrawString(text)
}

// Cache keeps rendered placeholders in memory. Placeholders never change, so entries
// do not expire.
type Cache struct {
	mu    sync.RWMutex
	data  map[Spec][]byte
	limit int
}

// NewCache creates a cache holding at most limit placeholders.
func NewCache(limit int) *Cache {
	return &Cache{data: make(map[Spec][]byte), limit: limit}
}

// Get returns the placeholder for spec, rendering it on first use.
func (c *Cache) Get(spec Spec) ([]byte, error) {
	spec, err := spec.normalize()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	data, ok := c.data[spec]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err = Placeholder(spec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.data) >= c.limit {
		clear(c.data)
	}
	c.data[spec] = data
	return data, nil
}
