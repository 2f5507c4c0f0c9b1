package app

import (
	"math/rand"
	"time"

	"quizmint-service/internal/domain"
)

// RarityDrawer performs the weighted random tier draw done once per
// credential: 1% Legendary, 5% Epic, 10% Rare, 20% Uncommon, rest Common.
// The draw itself is random; everything downstream of it is deterministic.
type RarityDrawer struct {
	roll func() float64
}

func NewRarityDrawer() *RarityDrawer {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &RarityDrawer{roll: rnd.Float64}
}

// NewRarityDrawerWithRoll is test-only for fixed outcomes.
func NewRarityDrawerWithRoll(roll func() float64) *RarityDrawer {
	return &RarityDrawer{roll: roll}
}

func (d *RarityDrawer) Draw() domain.Rarity {
	r := d.roll() * 100
	switch {
	case r < 1:
		return domain.RarityLegendary
	case r < 6:
		return domain.RarityEpic
	case r < 16:
		return domain.RarityRare
	case r < 36:
		return domain.RarityUncommon
	default:
		return domain.RarityCommon
	}
}
