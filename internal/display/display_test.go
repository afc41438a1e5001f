package display

import (
	"image"
	"testing"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

func mustProfile(t *testing.T, realW, realH, targetW, targetH int) entity.DisplayProfile {
	t.Helper()
	p, err := NewProfile(realW, realH, targetW, targetH)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestNewProfile_NearestAspect(t *testing.T) {
	tests := []struct {
		name         string
		realW, realH int
		wantW, wantH int
	}{
		{"retina 16:10", 2560, 1600, 1280, 800},
		{"4:3 display", 1600, 1200, 1024, 768},
		{"16:9 display", 1920, 1080, 1366, 768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProfile(t, tt.realW, tt.realH, 0, 0)
			if p.VirtualWidth != tt.wantW || p.VirtualHeight != tt.wantH {
				t.Errorf("picked %dx%d, want %dx%d",
					p.VirtualWidth, p.VirtualHeight, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestNewProfile_ConfiguredTargetWins(t *testing.T) {
	p := mustProfile(t, 2560, 1600, 1024, 768)
	if p.VirtualWidth != 1024 || p.VirtualHeight != 768 {
		t.Errorf("got %dx%d, want configured 1024x768", p.VirtualWidth, p.VirtualHeight)
	}
}

func TestNewProfile_InvalidReal(t *testing.T) {
	if _, err := NewProfile(0, 1600, 0, 0); err == nil {
		t.Error("expected error for zero real width")
	}
}

func TestToReal_ScaleFactor2(t *testing.T) {
	tr := NewTransformer(mustProfile(t, 2560, 1600, 1280, 800))

	got := tr.ToReal(entity.Point{X: 500, Y: 400, Space: entity.SpaceVirtual})
	if got.X != 1000 || got.Y != 800 {
		t.Errorf("ToReal(500,400) = (%d,%d), want (1000,800)", got.X, got.Y)
	}
	if got.Space != entity.SpaceReal {
		t.Errorf("result space = %q, want real", got.Space)
	}
}

func TestToReal_ClampsOutOfRange(t *testing.T) {
	tr := NewTransformer(mustProfile(t, 2560, 1600, 1280, 800))

	got := tr.ToReal(entity.Point{X: 5000, Y: -3, Space: entity.SpaceVirtual})
	if got.X != 2559 || got.Y != 0 {
		t.Errorf("clamped to (%d,%d), want (2559,0)", got.X, got.Y)
	}
}

func TestRoundTrip_WithinOnePixel(t *testing.T) {
	profiles := []entity.DisplayProfile{
		mustProfile(t, 2560, 1600, 1280, 800),
		mustProfile(t, 1920, 1080, 1366, 768),
		mustProfile(t, 1440, 900, 1280, 800),
	}

	for _, p := range profiles {
		tr := NewTransformer(p)
		for x := 0; x < p.VirtualWidth; x += 7 {
			for y := 0; y < p.VirtualHeight; y += 7 {
				c := entity.Point{X: x, Y: y, Space: entity.SpaceVirtual}
				back := tr.ToVirtual(tr.ToReal(c))
				if abs(back.X-c.X) > 1 || abs(back.Y-c.Y) > 1 {
					t.Fatalf("profile %dx%d->%dx%d: round trip (%d,%d) -> (%d,%d)",
						p.RealWidth, p.RealHeight, p.VirtualWidth, p.VirtualHeight,
						c.X, c.Y, back.X, back.Y)
				}
			}
		}
	}
}

func TestScaleImage_ExactVirtualDimensions(t *testing.T) {
	tr := NewTransformer(mustProfile(t, 2560, 1600, 1280, 800))

	img := image.NewRGBA(image.Rect(0, 0, 2560, 1600))
	scaled := tr.ScaleImage(img)

	if scaled.Bounds().Dx() != 1280 || scaled.Bounds().Dy() != 800 {
		t.Errorf("scaled to %dx%d, want 1280x800",
			scaled.Bounds().Dx(), scaled.Bounds().Dy())
	}
}

func TestScaleImage_NoopAtVirtualSize(t *testing.T) {
	tr := NewTransformer(mustProfile(t, 1280, 800, 1280, 800))

	img := image.NewRGBA(image.Rect(0, 0, 1280, 800))
	if scaled := tr.ScaleImage(img); scaled != img {
		t.Error("expected the same image back when already at virtual size")
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
