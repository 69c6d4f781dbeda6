// Package thumbnail renders a placeholder cover card for a document.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 240
	Height = 320

	margin    = 16
	bandH     = 56
	lineH     = 16
	maxLines  = 12
	glyphW    = 7
	lineChars = (Width - 2*margin) / glyphW
)

var (
	DefaultAccent = color.RGBA{R: 0x4f, G: 0x46, B: 0xe5, A: 0xff}
	paper         = color.RGBA{R: 0xfa, G: 0xfa, B: 0xf9, A: 0xff}
	ink           = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	muted         = color.RGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
)

type Card struct {
	Title     string
	PageCount int
	SizeLabel string
	Accent    color.Color
}

// Render draws the card and returns it PNG-encoded.
func Render(card Card) ([]byte, error) {
	accent := card.Accent
	if accent == nil {
		accent = DefaultAccent
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: paper}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, Width, bandH), &image.Uniform{C: accent}, image.Point{}, draw.Src)

	writeLine(img, color.White, margin, bandH/2+4, "PDF")

	y := bandH + margin + lineH
	for _, line := range WrapTitle(card.Title, lineChars, maxLines) {
		writeLine(img, ink, margin, y, line)
		y += lineH
	}

	footer := fmt.Sprintf("%d pages", card.PageCount)
	if card.PageCount == 1 {
		footer = "1 page"
	}
	if card.SizeLabel != "" {
		footer += " - " + card.SizeLabel
	}
	writeLine(img, muted, margin, Height-margin, footer)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode thumbnail failed: %w", err)
	}
	return buf.Bytes(), nil
}

func writeLine(dst draw.Image, c color.Color, x, y int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// WrapTitle splits title into at most maxLines lines of width runes, breaking
// on spaces where possible. Overflow is marked with "...".
func WrapTitle(title string, width, maxLines int) []string {
	words := strings.Fields(title)
	if len(words) == 0 {
		return []string{"Untitled"}
	}

	var lines []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, string(current))
			current = current[:0]
		}
	}
	for _, w := range words {
		word := []rune(w)
		for len(word) > width {
			flush()
			lines = append(lines, string(word[:width]))
			word = word[width:]
		}
		if len(current) > 0 && len(current)+1+len(word) > width {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, word...)
	}
	flush()

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last) > width-3 {
			last = last[:width-3]
		}
		lines[maxLines-1] = string(last) + "..."
	}
	return lines
}
