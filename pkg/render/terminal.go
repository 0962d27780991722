package render

import (
	"image/color"

	uv "github.com/charmbracelet/ultraviolet"
)

// Draw converts the framebuffer to terminal cells and draws them on the
// screen. The framebuffer height should be 2x the terminal height.
func (fb *Framebuffer) Draw(scr uv.Screen, area uv.Rectangle) {
	// Each terminal row represents 2 framebuffer rows
	// We use ▀ (upper half block) with fg=top color and bg=bottom color

	for row := area.Min.Y; row < area.Max.Y; row++ {
		topY := (row - area.Min.Y) * 2
		botY := topY + 1

		for col := area.Min.X; col < area.Max.X && col-area.Min.X < fb.Width; col++ {
			x := col - area.Min.X
			cell := &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: rgbaToColor(fb.GetPixel(x, topY)),
					Bg: rgbaToColor(fb.GetPixel(x, botY)),
				},
			}
			scr.SetCell(col, row, cell)
		}
	}
}

// DrawText writes s on one terminal row starting at (x, y), clipped to the
// screen bounds.
func DrawText(scr uv.Screen, x, y int, s string, fg color.Color) {
	b := scr.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for _, r := range s {
		if x >= b.Max.X {
			return
		}
		if x >= b.Min.X {
			scr.SetCell(x, y, &uv.Cell{
				Content: string(r),
				Width:   1,
				Style:   uv.Style{Fg: fg},
			})
		}
		x++
	}
}

// rgbaToColor converts color.RGBA to Go's color.Color interface.
func rgbaToColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil // Transparent = no color
	}
	return c
}

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

// Palette used by the gaze plot.
var (
	ColorBackground = RGB(30, 30, 40)
	ColorGrid       = RGB(55, 55, 70)
	ColorLeftEye    = RGB(80, 160, 255)
	ColorRightEye   = RGB(255, 110, 90)
	ColorCombined   = RGB(200, 200, 200)
	ColorClosest    = RGB(0, 255, 128)
	ColorIntersect  = RGB(255, 220, 60)
	ColorMarker     = RGB(255, 0, 255)
	ColorTarget     = RGB(128, 128, 128)
	ColorTargetHit  = RGB(255, 255, 255)
)

// RGB creates a color from RGB values.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}
