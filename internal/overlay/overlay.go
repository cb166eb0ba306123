// Package overlay draws the typing feedback on top of camera frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/debounce"
)

// Layout constants, in pixels.
const (
	BannerHeight = 100
	BarHeight    = 10

	labelTop  = BannerHeight + 20
	labelRow  = 50
	barOffset = 50
)

// Placeholder is shown in the banner while nothing has been typed.
const Placeholder = "Start typing with gestures..."

var (
	colorBlack  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorGrey   = color.RGBA{R: 70, G: 70, B: 70, A: 255}
	colorGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorRed    = color.RGBA{R: 255, G: 60, B: 60, A: 255}
)

// State is everything the renderer needs for one frame.
type State struct {
	Text         string
	Progress     debounce.Progress
	ButtonActive bool
	Voice        string
	Paused       bool
}

// Renderer draws State onto frames.
type Renderer struct {
	font gocv.HersheyFont
}

// NewRenderer creates a Renderer using the Hershey simplex font.
func NewRenderer() *Renderer {
	return &Renderer{font: gocv.FontHersheySimplex}
}

// Draw renders s onto frame in place.
func (r *Renderer) Draw(frame *gocv.Mat, s State) {
	if frame == nil || frame.Empty() {
		return
	}
	width, height := frame.Cols(), frame.Rows()

	gocv.Rectangle(frame, image.Rect(0, 0, width, BannerHeight), colorBlack, -1)

	text := s.Text
	if text == "" {
		text = Placeholder
	}
	size := gocv.GetTextSize(text, r.font, 1.0, 2)
	org := image.Pt((width-size.X)/2, BannerHeight/2+size.Y/2)
	gocv.PutText(frame, text, org, r.font, 1.0, colorWhite, 2)

	if s.ButtonActive {
		gocv.Rectangle(frame, image.Rect(2, 2, width-2, BannerHeight-2), colorGreen, 3)
	}

	if s.Progress.Category != "" {
		percent := s.Progress.Fraction * 100
		label := fmt.Sprintf("Current gesture: %s (Progress: %.0f%%)", s.Progress.Category, percent)
		gocv.PutText(frame, label, image.Pt(10, labelTop+labelRow+30), r.font, 0.7, colorYellow, 2)

		bar := BarRect(width)
		gocv.Rectangle(frame, bar, colorGrey, -1)
		if fill := FillRect(bar, s.Progress.Fraction); !fill.Empty() {
			gocv.Rectangle(frame, fill, colorGreen, -1)
		}
	}

	if s.Paused {
		gocv.PutText(frame, "Paused", image.Pt(width-110, height-10), r.font, 0.6, colorRed, 2)
	}

	if s.Voice != "" {
		gocv.PutText(frame, "Voice: "+s.Voice, image.Pt(10, height-10), r.font, 0.6, colorWhite, 1)
	}
}

// BarRect returns the progress bar track for a frame of the given width:
// 80% of the width, centered, below the gesture label.
func BarRect(width int) image.Rectangle {
	barWidth := int(float64(width) * 0.8)
	x := (width - barWidth) / 2
	y := labelTop + labelRow + barOffset
	return image.Rect(x, y, x+barWidth, y+BarHeight)
}

// FillRect returns the filled part of bar for fraction in [0,1].
func FillRect(bar image.Rectangle, fraction float64) image.Rectangle {
	if fraction <= 0 {
		return image.Rectangle{}
	}
	if fraction > 1 {
		fraction = 1
	}
	w := int(float64(bar.Dx()) * fraction)
	return image.Rect(bar.Min.X, bar.Min.Y, bar.Min.X+w, bar.Max.Y)
}
