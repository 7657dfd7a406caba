package present

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
)

// halfBlock draws the top pixel in the foreground colour and the bottom
// pixel in the background colour, giving two pixel rows per terminal row.
const halfBlock = "▀"

// Thumbnail is a terminal rendering of an image bounded to cols x rows cells.
type Thumbnail struct {
	cols, rows int
	img        *image.NRGBA
	lines      []string
}

// LoadThumbnail decodes path and scales it to fit within cols x rows cells,
// preserving aspect ratio.
func LoadThumbnail(path string, cols, rows int) (*Thumbnail, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("thumbnail bounds must be positive, got %dx%d", cols, rows)
	}
	src, err := embeddings.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return NewThumbnail(src, cols, rows), nil
}

// NewThumbnail scales src to fit within cols x rows cells.
func NewThumbnail(src image.Image, cols, rows int) *Thumbnail {
	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), cols, rows*2)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return &Thumbnail{cols: cols, rows: rows, img: dst}
}

// fitWithin scales w x h down (never up) to fit maxW x maxH, keeping at
// least one pixel per side.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

// Size returns the scaled image size in pixels.
func (t *Thumbnail) Size() (int, int) {
	if t.img == nil {
		return 0, 0
	}
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// View renders the thumbnail padded to its full cell bounds.
func (t *Thumbnail) View() string {
	if t.lines == nil {
		t.lines = t.render()
	}
	return strings.Join(t.lines, "\n")
}

func (t *Thumbnail) render() []string {
	blank := strings.Repeat(" ", t.cols)
	lines := make([]string, t.rows)
	if t.img == nil {
		for i := range lines {
			lines[i] = blank
		}
		return lines
	}

	w, h := t.Size()
	for row := 0; row < t.rows; row++ {
		y := row * 2
		if y >= h {
			lines[row] = blank
			continue
		}
		var sb strings.Builder
		for x := 0; x < w; x++ {
			style := lipgloss.NewStyle().Foreground(pixelColor(t.img, x, y))
			if y+1 < h {
				style = style.Background(pixelColor(t.img, x, y+1))
			}
			sb.WriteString(style.Render(halfBlock))
		}
		sb.WriteString(strings.Repeat(" ", t.cols-w))
		lines[row] = sb.String()
	}
	return lines
}

func pixelColor(img *image.NRGBA, x, y int) lipgloss.Color {
	c := img.NRGBAAt(x, y)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// Release drops the pixel data. The thumbnail renders blank afterwards.
func (t *Thumbnail) Release() {
	t.img = nil
	t.lines = nil
}

// Released reports whether Release has been called.
func (t *Thumbnail) Released() bool {
	return t.img == nil
}

// placeholder renders a bordered "no preview" box of the thumbnail size.
func placeholder(cols, rows int) string {
	return placeholderStyle.
		Width(max(1, cols-2)).
		Height(max(1, rows-2)).
		Render("no preview")
}
