// Package render draws the calendar heatmap image from the dense day×month
// percentile grid. It is the display side of the grid interface; everything
// climatological happens upstream.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lox/heatcheck/internal/heatmap"
)

const (
	cellSize   = 14
	cellGap    = 2
	marginLeft = 30 // room for day-of-month labels
	marginTop  = 22 // room for month labels
)

var (
	background = color.RGBA{255, 255, 255, 255}
	emptyCell  = color.RGBA{235, 235, 235, 255}
	labelColor = color.RGBA{60, 60, 60, 255}

	monthLabels = []string{"J", "F", "M", "A", "M", "J", "J", "A", "S", "O", "N", "D"}
)

// Calendar renders one year's grid: months across, days of month down.
// Cells without a percentile stay the empty colour; days that do not exist
// (Feb 30) are left as background.
func Calendar(grid *heatmap.Grid, year int) image.Image {
	width := marginLeft + 12*(cellSize+cellGap)
	height := marginTop + 31*(cellSize+cellGap)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	for month := 1; month <= 12; month++ {
		drawLabel(img, marginLeft+(month-1)*(cellSize+cellGap)+3, marginTop-8, monthLabels[month-1])

		days := daysIn(year, time.Month(month))
		for day := 1; day <= days; day++ {
			cell := emptyCell
			if v := grid.Cell(day, month); v.Valid {
				cell = colorFor(v.Float64)
			}

			x := marginLeft + (month-1)*(cellSize+cellGap)
			y := marginTop + (day-1)*(cellSize+cellGap)
			draw.Draw(img, image.Rect(x, y, x+cellSize, y+cellSize), &image.Uniform{cell}, image.Point{}, draw.Src)
		}
	}

	for day := 1; day <= 31; day += 7 {
		drawLabel(img, 4, marginTop+(day-1)*(cellSize+cellGap)+11, fmt.Sprintf("%2d", day))
	}

	return img
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// colorFor maps a percentile to a cold-to-hot diverging ramp: deep blue at 0,
// near-white at 50, deep red at 100.
func colorFor(percentile float64) color.RGBA {
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 100 {
		percentile = 100
	}

	cold := color.RGBA{59, 76, 192, 255}
	mid := color.RGBA{242, 240, 235, 255}
	hot := color.RGBA{180, 4, 38, 255}

	if percentile <= 50 {
		return lerp(cold, mid, percentile/50)
	}
	return lerp(mid, hot, (percentile-50)/50)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*(float64(y)-float64(x)))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{labelColor},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
