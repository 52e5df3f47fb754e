package world

import "botscript.ai/internal/sim/world/logic/mathx"

// Shop sells from a finite stock and buys anything it has a price for.
type Shop struct {
	ID  string
	Pos Vec3i

	Stock  map[string]int
	Prices map[string]int
}

func (w *World) priceOf(s *Shop, item string) (int, bool) {
	if p, ok := s.Prices[item]; ok && p > 0 {
		return p, true
	}
	if def, ok := w.cfg.Items[item]; ok && def.Price > 0 {
		return def.Price, true
	}
	return 0, false
}

// sellBackPrice rounds up so that any priced item is worth at least one coin.
func (w *World) sellBackPrice(price int) int {
	return mathx.CeilDiv(price*w.cfg.SellBackPermille, 1000)
}
