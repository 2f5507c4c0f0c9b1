package artwork

import "github.com/ethereum/go-ethereum/crypto"

// Grid dimensions for each visual band.
const (
	GridRows = 7
	GridCols = 17
)

// Cell is one pattern slot: whether it is drawn and how much of the cell the
// shape occupies.
type Cell struct {
	Filled     bool
	SizeFactor float64
}

// Grid is the fixed-size pattern derived from one identifying string.
type Grid [GridRows][GridCols]Cell

// PatternFromSeed derives a grid from the keccak256 hash of the seed string.
// Two hash bytes drive each cell: the first byte's parity selects filled, the
// next scales the size factor into [0.5, 1.0]. Pure and deterministic, so the
// same seed always yields the same grid.
func PatternFromSeed(seed string) Grid {
	digest := crypto.Keccak256([]byte(seed))

	var grid Grid
	for i := 0; i < GridRows*GridCols; i++ {
		fillByte := digest[i%len(digest)]
		sizeByte := digest[(i+1)%len(digest)]
		grid[i/GridCols][i%GridCols] = Cell{
			Filled:     fillByte%2 == 0,
			SizeFactor: 0.5 + float64(sizeByte%128)/255,
		}
	}
	return grid
}
