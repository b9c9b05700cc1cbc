// Package artifacts persists captured and annotated frames per bot for
// post-hoc inspection. This is a diagnostic side channel: any failure here
// is the caller's to ignore.
package artifacts

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"go-emotion-bot/internal/core/domain"
)

var (
	boxColor   = color.RGBA{G: 255, A: 255}
	labelColor = color.RGBA{R: 255, A: 255}
)

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) SaveFrame(botID string, frame int, img image.Image) error {
	return s.write(botID, fmt.Sprintf("frame_%04d_original.png", frame), img)
}

// SaveAnnotated draws a bounding box, the dominant emotion with its
// confidence, and a face index for every detection, then persists the copy.
func (s *Store) SaveAnnotated(botID string, frame int, img image.Image, faces []domain.Face) error {
	annotated := image.NewRGBA(img.Bounds())
	draw.Draw(annotated, annotated.Bounds(), img, img.Bounds().Min, draw.Src)

	for i, f := range faces {
		if f.Region.Empty() {
			continue
		}
		drawRect(annotated, f.Region, boxColor)
		label := fmt.Sprintf("%s: %.1f%%", f.Dominant, f.Confidence())
		drawLabel(annotated, label, f.Region.Min.X, f.Region.Min.Y-4, boxColor)
		drawLabel(annotated, fmt.Sprintf("Face %d", i+1), f.Region.Min.X, f.Region.Max.Y+14, labelColor)
	}

	return s.write(botID, fmt.Sprintf("frame_%04d_annotated.png", frame), annotated)
}

// ListFrames returns the bot's frame directory and the png files in it,
// sorted by name. A bot that never persisted a frame gets an empty list.
func (s *Store) ListFrames(botID string) (string, []string, error) {
	dir := filepath.Join(s.root, botID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return dir, nil, nil
	}
	if err != nil {
		return dir, nil, err
	}
	var images []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			images = append(images, e.Name())
		}
	}
	return dir, images, nil
}

func (s *Store) write(botID, name string, img image.Image) error {
	dir := filepath.Join(s.root, botID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// drawRect outlines r with a 2px border, clipped to the image.
func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		for _, y := range []int{r.Min.Y, r.Min.Y + 1, r.Max.Y - 2, r.Max.Y - 1} {
			if y >= r.Min.Y && y < r.Max.Y {
				img.Set(x, y, c)
			}
		}
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for _, x := range []int{r.Min.X, r.Min.X + 1, r.Max.X - 2, r.Max.X - 1} {
			if x >= r.Min.X && x < r.Max.X {
				img.Set(x, y, c)
			}
		}
	}
}

func drawLabel(img *image.RGBA, text string, x, y int, c color.Color) {
	if y < basicfont.Face7x13.Ascent {
		y = basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
