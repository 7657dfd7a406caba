package embeddings

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// DefaultImageSize is the input resolution of ViT-B/32 CLIP vision towers.
const DefaultImageSize = 224

// CLIP pixel statistics used by the reference image processor.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// Preprocess converts an RGB image into a normalized 1x3xSxS NCHW tensor:
// shortest side resized to size, centre crop, scale to [0,1], then
// per-channel (x-mean)/std.
func Preprocess(img *image.NRGBA, size int) []float32 {
	if size <= 0 {
		size = DefaultImageSize
	}
	cropped := resizeAndCrop(img, size)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := cropped.PixOffset(x, y)
			idx := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(cropped.Pix[off+c]) / 255
				out[c*plane+idx] = (v - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}

// resizeAndCrop scales img so its shorter side equals size, then takes the
// centred size x size square.
func resizeAndCrop(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var rw, rh int
	if w <= h {
		rw = size
		rh = max(size, (h*size+w/2)/w)
	} else {
		rh = size
		rw = max(size, (w*size+h/2)/h)
	}

	resized := image.NewNRGBA(image.Rect(0, 0, rw, rh))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, b, xdraw.Src, nil)

	x0 := (rw - size) / 2
	y0 := (rh - size) / 2
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.Copy(out, image.Point{}, resized, image.Rect(x0, y0, x0+size, y0+size), xdraw.Src, nil)
	return out
}
