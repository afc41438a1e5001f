// Package display owns the coordinate transform between the virtual
// resolution the model reasons about and the real hardware resolution,
// plus screenshot rescaling into the virtual space.
package display

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

type resolution struct {
	W int
	H int
}

// supportedVirtual are the virtual resolutions the agent may be given.
// Scaling is always uniform to exactly one of these; the profile picks
// the entry whose aspect ratio is nearest the real display's.
var supportedVirtual = []resolution{
	{1024, 768},
	{1280, 800},
	{1366, 768},
}

// NewProfile builds the session's display profile from the detected
// hardware resolution. If targetW/targetH are positive they name the
// configured virtual resolution and are used as given; otherwise the
// nearest-aspect supported resolution is chosen.
func NewProfile(realW, realH, targetW, targetH int) (entity.DisplayProfile, error) {
	if realW <= 0 || realH <= 0 {
		return entity.DisplayProfile{}, fmt.Errorf("invalid real resolution %dx%d", realW, realH)
	}

	vw, vh := targetW, targetH
	if vw <= 0 || vh <= 0 {
		vw, vh = nearestAspect(realW, realH)
	}

	return entity.DisplayProfile{
		RealWidth:     realW,
		RealHeight:    realH,
		VirtualWidth:  vw,
		VirtualHeight: vh,
	}, nil
}

func nearestAspect(realW, realH int) (int, int) {
	realRatio := float64(realW) / float64(realH)
	best := supportedVirtual[0]
	bestDiff := math.Inf(1)
	for _, res := range supportedVirtual {
		diff := math.Abs(float64(res.W)/float64(res.H) - realRatio)
		if diff < bestDiff {
			best = res
			bestDiff = diff
		}
	}
	return best.W, best.H
}

// Transformer converts coordinates and images between the two spaces.
// Built once per session; safe for concurrent reads.
type Transformer struct {
	profile entity.DisplayProfile
	sx      float64
	sy      float64
}

func NewTransformer(profile entity.DisplayProfile) *Transformer {
	return &Transformer{
		profile: profile,
		sx:      float64(profile.RealWidth) / float64(profile.VirtualWidth),
		sy:      float64(profile.RealHeight) / float64(profile.VirtualHeight),
	}
}

func (t *Transformer) Profile() entity.DisplayProfile {
	return t.profile
}

// ToReal maps a virtual-space point onto the hardware display.
// Out-of-range input is clamped to the nearest valid point, not rejected.
func (t *Transformer) ToReal(p entity.Point) entity.Point {
	return entity.Point{
		X:     clamp(int(math.Round(float64(p.X)*t.sx)), t.profile.RealWidth-1),
		Y:     clamp(int(math.Round(float64(p.Y)*t.sy)), t.profile.RealHeight-1),
		Space: entity.SpaceReal,
	}
}

// ToVirtual maps a real-space point back into the model's space.
func (t *Transformer) ToVirtual(p entity.Point) entity.Point {
	return entity.Point{
		X:     clamp(int(math.Round(float64(p.X)/t.sx)), t.profile.VirtualWidth-1),
		Y:     clamp(int(math.Round(float64(p.Y)/t.sy)), t.profile.VirtualHeight-1),
		Space: entity.SpaceVirtual,
	}
}

// ScaleImage resizes a captured screenshot to exactly the virtual
// resolution so the model always reasons in one coordinate space.
func (t *Transformer) ScaleImage(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == t.profile.VirtualWidth && b.Dy() == t.profile.VirtualHeight {
		return img
	}
	return imaging.Resize(img, t.profile.VirtualWidth, t.profile.VirtualHeight, imaging.Lanczos)
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// EncodePNGBase64 encodes an image as a base64 PNG payload for transport.
func EncodePNGBase64(img image.Image) (string, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return "", fmt.Errorf("png encode failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
