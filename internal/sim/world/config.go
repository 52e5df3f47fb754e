package world

import "botscript.ai/internal/protocol"

type WorldConfig struct {
	ID         string
	TickRateHz int
	BoundaryR  int

	// InteractRange is the horizontal distance within which an agent may
	// open a container, shop or NPC dialogue.
	InteractRange int
	// MaxEvents bounds the per-agent event buffer; older events are dropped.
	MaxEvents int

	StarterCoins int
	// If nil, defaults are applied; if non-nil but empty, new agents get no starter items.
	StarterItems map[string]int

	// Items maps item ids to their equipment slot and base price.
	Items map[string]ItemDef
	// SellBackPermille is the fraction of the price a shop pays when buying back.
	SellBackPermille int
}

type ItemDef struct {
	Slot  string
	Price int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "default"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 4000
	}
	if c.InteractRange <= 0 {
		c.InteractRange = 2
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 256
	}
	if c.StarterItems == nil {
		c.StarterItems = map[string]int{}
	}
	if c.Items == nil {
		c.Items = map[string]ItemDef{}
	}
	if c.SellBackPermille <= 0 {
		c.SellBackPermille = 500
	}
}

func (c *WorldConfig) slotOf(item string) string {
	if def, ok := c.Items[item]; ok && def.Slot != "" {
		return def.Slot
	}
	return protocol.SlotMainHand
}
