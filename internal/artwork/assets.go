package artwork

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"

	"quizmint-service/internal/domain"
)

// AssetSet holds the static layers composited around the generated bands:
// one shared background and one foreground overlay per rarity tier.
type AssetSet struct {
	Background image.Image
	Overlays   map[domain.Rarity]image.Image
}

// LoadAssets reads background.png and one <Rarity>.png per tier from dir.
// Every file must be present.
func LoadAssets(dir string) (*AssetSet, error) {
	background, err := imaging.Open(filepath.Join(dir, "background.png"))
	if err != nil {
		return nil, fmt.Errorf("load background asset: %w", err)
	}

	overlays := make(map[domain.Rarity]image.Image, len(domain.Rarities))
	for _, rarity := range domain.Rarities {
		overlay, err := imaging.Open(filepath.Join(dir, string(rarity)+".png"))
		if err != nil {
			return nil, fmt.Errorf("load %s overlay: %w", rarity, err)
		}
		overlays[rarity] = overlay
	}
	return &AssetSet{Background: background, Overlays: overlays}, nil
}
