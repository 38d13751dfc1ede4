// Package watermark burns a GPS/timestamp overlay into captured survey
// photos before they are stored. The overlay is rendered server-side from
// the submitted fix and the server receipt time; a client-side burn is
// never trusted.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/jpeg"
	_ "image/png"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/webp"
)

const (
	// maxSide is the longest output dimension; larger photos are downscaled.
	maxSide = 1600

	jpegQuality = 85
)

var ErrUndecodable = errors.New("watermark: image could not be decoded")

type Info struct {
	Lat   float64
	Lng   float64
	Taken time.Time
}

// Apply decodes raw (jpeg, png, or webp), downscales it to at most maxSide
// on the longest edge, draws the location/timestamp strip along the bottom,
// and re-encodes as jpeg.
func Apply(raw []byte, info Info) ([]byte, error) {
	img, err := decode(raw)
	if err != nil {
		return nil, err
	}

	img = downscale(img)

	b := img.Bounds()
	canvas := image.NewRGBA(b)
	stddraw.Draw(canvas, b, img, b.Min, stddraw.Src)

	drawStrip(canvas, info)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("watermark: encode: %w", err)
	}
	return out.Bytes(), nil
}

func decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}
	// image/webp has no stdlib decoder; x/image handles it.
	if wimg, werr := webp.Decode(bytes.NewReader(raw)); werr == nil {
		return wimg, nil
	}
	return nil, ErrUndecodable
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	scale := float64(maxSide) / float64(w)
	if h > w {
		scale = float64(maxSide) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// drawStrip renders the translucent band, pin glyph, and two text lines.
func drawStrip(canvas *image.RGBA, info Info) {
	b := canvas.Bounds()
	w, h := b.Dx(), b.Dy()

	stripH := h / 9
	if stripH < 48 {
		stripH = 48
	}
	if stripH > h {
		stripH = h
	}
	strip := image.Rect(b.Min.X, b.Max.Y-stripH, b.Max.X, b.Max.Y)

	shade := image.NewUniform(color.NRGBA{0, 0, 0, 150})
	stddraw.Draw(canvas, strip, shade, image.Point{}, stddraw.Over)

	// basicfont renders at a fixed 7x13; draw the overlay small and scale it
	// up so the text stays proportional to the photo.
	scale := w / 480
	if scale < 1 {
		scale = 1
	}
	if scale > 4 {
		scale = 4
	}

	ow := (w + scale - 1) / scale
	oh := (stripH + scale - 1) / scale
	overlay := image.NewRGBA(image.Rect(0, 0, ow, oh))

	pinR := oh / 4
	if pinR < 4 {
		pinR = 4
	}
	pinCX := 8 + pinR
	drawPin(overlay, pinCX, oh/2, pinR)

	lines := []string{
		fmt.Sprintf("%.6f, %.6f", info.Lat, info.Lng),
		info.Taken.Format("02 Jan 2006 15:04:05 MST"),
	}
	textX := pinCX + pinR + 8
	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil() + 2
	textY := oh/2 - lineH/2 + face.Metrics().Ascent.Ceil()/2
	if textY < face.Metrics().Ascent.Ceil() {
		textY = face.Metrics().Ascent.Ceil()
	}
	for _, line := range lines {
		d := font.Drawer{
			Dst:  overlay,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P(textX, textY),
		}
		d.DrawString(line)
		textY += lineH
	}

	xdraw.NearestNeighbor.Scale(canvas, strip, overlay, overlay.Bounds(), xdraw.Over, nil)
}

// drawPin draws a filled location-pin glyph: a disc with a hollow center
// and a pointer wedge beneath.
func drawPin(dst *image.RGBA, cx, cy, r int) {
	fill := color.NRGBA{235, 64, 52, 255}
	hole := color.NRGBA{255, 255, 255, 255}

	headCY := cy - r/3
	for y := headCY - r; y <= headCY+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-headCY
			d2 := dx*dx + dy*dy
			if d2 > r*r {
				continue
			}
			c := fill
			if inner := r / 3; d2 <= inner*inner {
				c = hole
			}
			dst.Set(x, y, c)
		}
	}

	// Pointer wedge narrowing toward the tip.
	tipY := cy + r
	for y := headCY + r/2; y <= tipY; y++ {
		half := (tipY - y) * r / (tipY - headCY)
		for x := cx - half; x <= cx+half; x++ {
			dst.Set(x, y, fill)
		}
	}
}
