package embeddings

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	"golang.org/x/image/draw"
)

// LoadImage opens and decodes path, returning it as opaque 8-bit RGB.
// Open and decode failures wrap ErrImageDecode.
func LoadImage(path string) (*image.NRGBA, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrEmptyInput)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %s: empty %s image", ErrImageDecode, path, format)
	}

	return ToRGB(img), nil
}

// ToRGB converts any image to a non-premultiplied RGB image with alpha
// dropped, so translucent pixels keep their colour rather than darkening.
func ToRGB(src image.Image) *image.NRGBA {
	b := src.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	var dst *image.NRGBA
	switch s := src.(type) {
	case *image.NRGBA:
		dst = image.NewNRGBA(rect)
		for y := 0; y < b.Dy(); y++ {
			i := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:], s.Pix[i:i+4*b.Dx()])
		}
	case opaquer:
		if !s.Opaque() {
			dst = convertNRGBA(src, rect)
			break
		}
		// Premultiplied and straight alpha agree on opaque pixels, and
		// drawing into RGBA takes the YCbCr and Gray fast paths.
		rgba := image.NewRGBA(rect)
		draw.Draw(rgba, rect, src, b.Min, draw.Src)
		dst = &image.NRGBA{Pix: rgba.Pix, Stride: rgba.Stride, Rect: rect}
	default:
		dst = convertNRGBA(src, rect)
	}

	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

type opaquer interface {
	Opaque() bool
}

func convertNRGBA(src image.Image, rect image.Rectangle) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}
