package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const (
	// Threshold separates mask background from foreground on a 0-255 scale.
	// Intensities strictly above it become foreground.
	Threshold = 30

	originalWeight = 0.7
	maskWeight     = 0.3
)

// Highlight is the color painted over foreground mask pixels.
var Highlight = color.RGBA{R: 0, G: 0, B: 255, A: 255}

var (
	ErrDecode            = errors.New("image decode failed")
	ErrIncompatibleImage = errors.New("images incompatible for overlay")
)

// Decode parses any registered raster format (png, jpeg, gif, bmp, tiff).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// EncodePNG returns img as an in-memory PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// luma is the ITU-R 601 intensity of c computed on straight (non
// premultiplied) channels. Alpha is ignored.
func luma(c color.Color) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	y := (19595*uint32(n.R) + 38470*uint32(n.G) + 7471*uint32(n.B) + 1<<15) >> 16
	return uint8(y)
}

// Binarize converts img to single-channel intensity and thresholds it:
// pixels brighter than Threshold become 255, everything else 0. The result
// is anchored at the origin.
func Binarize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	gray, isGray := img.(*image.Gray)
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range row {
			var v uint8
			if isGray {
				v = gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			} else {
				v = luma(img.At(b.Min.X+x, b.Min.Y+y))
			}
			if v > Threshold {
				row[x] = 255
			} else {
				row[x] = 0
			}
		}
	}
	return out
}

// resize scales a binary mask with nearest-neighbour sampling so labels stay
// hard-edged.
func resize(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// colorize paints foreground pixels of a binary mask with Highlight on black.
func colorize(bin *image.Gray) *image.RGBA {
	out := image.NewRGBA(bin.Bounds())
	for i, v := range bin.Pix {
		p := out.Pix[i*4 : i*4+4 : i*4+4]
		if v == 255 {
			p[0], p[1], p[2] = Highlight.R, Highlight.G, Highlight.B
		}
		p[3] = 255
	}
	return out
}

// toRGB normalizes img to an opaque three-channel image at the origin.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = n.R, n.G, n.B, 255
		}
	}
	return out
}

func blend(orig, mask uint8) uint8 {
	v := math.Round(originalWeight*float64(orig) + maskWeight*float64(mask))
	return uint8(min(max(v, 0), 255))
}

// Overlay binarizes mask, resizes it to original's dimensions if needed,
// recolors foreground with Highlight and blends it as
// 0.7*original + 0.3*mask per channel.
func Overlay(original, mask image.Image) (*image.RGBA, error) {
	ob, mb := original.Bounds(), mask.Bounds()
	if ob.Empty() || mb.Empty() {
		return nil, fmt.Errorf("%w: original %v, mask %v", ErrIncompatibleImage, ob.Size(), mb.Size())
	}

	bin := Binarize(mask)
	if bin.Bounds().Size() != ob.Size() {
		bin = resize(bin, ob.Dx(), ob.Dy())
	}
	colored := colorize(bin)
	base := toRGB(original)
	if base.Bounds() != colored.Bounds() || len(base.Pix) != len(colored.Pix) {
		return nil, fmt.Errorf("%w: original %v, mask %v after resize", ErrIncompatibleImage, base.Bounds().Size(), colored.Bounds().Size())
	}

	out := image.NewRGBA(base.Bounds())
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = blend(base.Pix[i], colored.Pix[i])
		out.Pix[i+1] = blend(base.Pix[i+1], colored.Pix[i+1])
		out.Pix[i+2] = blend(base.Pix[i+2], colored.Pix[i+2])
		out.Pix[i+3] = 255
	}
	return out, nil
}
