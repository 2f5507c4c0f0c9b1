package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"quizmint-service/internal/domain"
)

// CanvasSize is the square output edge in pixels. Divisible by three so the
// bands stack without remainder.
const CanvasSize = 1020

// rarityColors is the 5-entry shape palette; unknown rarities fall back to
// the Common color.
var rarityColors = map[domain.Rarity]color.NRGBA{
	domain.RarityLegendary: {R: 91, G: 222, B: 255, A: 255},
	domain.RarityEpic:      {R: 252, G: 211, B: 31, A: 255},
	domain.RarityRare:      {R: 133, G: 133, B: 133, A: 255},
	domain.RarityUncommon:  {R: 221, G: 149, B: 41, A: 255},
	domain.RarityCommon:    {R: 63, G: 63, B: 63, A: 255},
}

func shapeColor(rarity domain.Rarity) color.NRGBA {
	if c, ok := rarityColors[rarity]; ok {
		return c
	}
	return rarityColors[domain.RarityCommon]
}

// Generator renders credential artwork. Output is a pure function of the four
// Generate inputs (plus the static assets), so regenerating after a retry
// yields byte-identical PNGs.
type Generator struct {
	assets *AssetSet
}

// NewGenerator builds a generator. assets may be nil, in which case the
// canvas gets a plain white background and no overlay.
func NewGenerator(assets *AssetSet) *Generator {
	return &Generator{assets: assets}
}

// Generate renders the three stacked pattern bands: triangles seeded by the
// quiz id, rectangles by the wallet address at 25% opacity, circles by the
// timestamp. Shape color follows the rarity palette.
func (g *Generator) Generate(quizID, walletAddress, timestamp string, rarity domain.Rarity) ([]byte, error) {
	if quizID == "" || walletAddress == "" || timestamp == "" {
		return nil, fmt.Errorf("artwork inputs must be non-empty")
	}

	dc := gg.NewContext(CanvasSize, CanvasSize)
	if g.assets != nil && g.assets.Background != nil {
		dc.DrawImage(fitCanvas(g.assets.Background), 0, 0)
	} else {
		dc.SetRGB(1, 1, 1)
		dc.Clear()
	}

	const (
		bandHeight = float64(CanvasSize) / 3
		cellWidth  = float64(CanvasSize) / GridCols
		cellHeight = bandHeight / GridRows
	)
	fill := shapeColor(rarity)

	drawTriangles(dc, PatternFromSeed(quizID), 0, cellWidth, cellHeight, fill)
	drawRectangles(dc, PatternFromSeed(walletAddress), bandHeight, cellWidth, cellHeight, fill)
	drawCircles(dc, PatternFromSeed(timestamp), 2*bandHeight, cellWidth, cellHeight, fill)

	if g.assets != nil {
		if overlay, ok := g.assets.Overlays[rarity]; ok {
			dc.DrawImage(fitCanvas(overlay), 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

func drawTriangles(dc *gg.Context, grid Grid, offsetY, cellWidth, cellHeight float64, fill color.NRGBA) {
	dc.SetColor(fill)
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridCols; col++ {
			cell := grid[row][col]
			if !cell.Filled {
				continue
			}
			x := float64(col) * cellWidth
			y := offsetY + float64(row)*cellHeight
			halfWidth := cellWidth / 2 * cell.SizeFactor
			height := cellHeight * cell.SizeFactor
			dc.NewSubPath()
			dc.MoveTo(x+cellWidth/2, y)
			dc.LineTo(x+cellWidth/2-halfWidth, y+height)
			dc.LineTo(x+cellWidth/2+halfWidth, y+height)
			dc.ClosePath()
			dc.Fill()
		}
	}
}

func drawRectangles(dc *gg.Context, grid Grid, offsetY, cellWidth, cellHeight float64, fill color.NRGBA) {
	// Middle band draws at reduced opacity so the layers read as depth.
	dc.SetRGBA255(int(fill.R), int(fill.G), int(fill.B), 64)
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridCols; col++ {
			cell := grid[row][col]
			if !cell.Filled {
				continue
			}
			width := cellWidth * cell.SizeFactor
			height := cellHeight * cell.SizeFactor
			x := float64(col)*cellWidth + (cellWidth-width)/2
			y := offsetY + float64(row)*cellHeight + (cellHeight-height)/2
			dc.DrawRectangle(x, y, width, height)
			dc.Fill()
		}
	}
}

func drawCircles(dc *gg.Context, grid Grid, offsetY, cellWidth, cellHeight float64, fill color.NRGBA) {
	dc.SetColor(fill)
	maxRadius := math.Min(cellWidth, cellHeight)/2 - 2
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridCols; col++ {
			cell := grid[row][col]
			if !cell.Filled {
				continue
			}
			x := float64(col)*cellWidth + cellWidth/2
			y := offsetY + float64(row)*cellHeight + cellHeight/2
			dc.DrawCircle(x, y, maxRadius*cell.SizeFactor)
			dc.Fill()
		}
	}
}

// fitCanvas scales a static asset to the canvas edge. Lanczos keeps the
// overlays crisp when the source art is larger than the canvas.
func fitCanvas(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == CanvasSize && bounds.Dy() == CanvasSize {
		return img
	}
	return imaging.Resize(img, CanvasSize, CanvasSize, imaging.Lanczos)
}
