package overlay

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/debounce"
)

func TestBarRect(t *testing.T) {
	bar := BarRect(640)

	if bar.Dx() != 512 {
		t.Errorf("bar width = %d, want 512 (80%% of 640)", bar.Dx())
	}
	if bar.Min.X != 64 {
		t.Errorf("bar x = %d, want 64 (centered)", bar.Min.X)
	}
	if bar.Dy() != BarHeight {
		t.Errorf("bar height = %d, want %d", bar.Dy(), BarHeight)
	}
	if bar.Min.Y <= BannerHeight {
		t.Errorf("bar y = %d, want below the banner", bar.Min.Y)
	}
}

func TestFillRect(t *testing.T) {
	bar := image.Rect(10, 200, 110, 210)

	tests := []struct {
		name     string
		fraction float64
		wantW    int
	}{
		{name: "empty", fraction: 0, wantW: 0},
		{name: "negative", fraction: -0.5, wantW: 0},
		{name: "half", fraction: 0.5, wantW: 50},
		{name: "full", fraction: 1, wantW: 100},
		{name: "clamped", fraction: 1.7, wantW: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fill := FillRect(bar, tt.fraction)
			if fill.Dx() != tt.wantW {
				t.Errorf("fill width = %d, want %d", fill.Dx(), tt.wantW)
			}
			if tt.wantW > 0 && fill.Min != bar.Min {
				t.Errorf("fill starts at %v, want %v", fill.Min, bar.Min)
			}
		})
	}
}

func TestRenderer_Draw(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	white := gocv.NewScalar(255, 255, 255, 0)
	frame.SetTo(white)

	r := NewRenderer()
	r.Draw(&frame, State{
		Text:     "hi",
		Progress: debounce.Progress{Category: "a", Fraction: 0.5},
		Voice:    "Rachel",
	})

	// Banner corner is painted black.
	if px := frame.GetVecbAt(5, 630); px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("banner pixel = %v, want black", px)
	}

	bar := BarRect(640)
	midY := bar.Min.Y + BarHeight/2

	// Start of the bar is filled green (BGR).
	if px := frame.GetVecbAt(midY, bar.Min.X+2); px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("filled bar pixel = %v, want green", px)
	}

	// End of the bar is the grey track.
	if px := frame.GetVecbAt(midY, bar.Max.X-2); px[0] != 70 || px[1] != 70 || px[2] != 70 {
		t.Errorf("track pixel = %v, want grey", px)
	}
}

func TestRenderer_DrawIdleHasNoBar(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(255, 255, 255, 0))

	NewRenderer().Draw(&frame, State{})

	bar := BarRect(640)
	px := frame.GetVecbAt(bar.Min.Y+BarHeight/2, bar.Max.X-2)
	if px[0] != 255 || px[1] != 255 || px[2] != 255 {
		t.Errorf("no progress bar expected when idle, pixel = %v", px)
	}
}

func TestRenderer_DrawEmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	// Must not panic.
	NewRenderer().Draw(&frame, State{Text: "x"})
	NewRenderer().Draw(nil, State{})
}
