package config

import (
	"botscript.ai/internal/sim/world"
)

// WorldConfig converts the world section into the simulation's config.
func (c Config) WorldConfig() world.WorldConfig {
	w := c.World
	items := make(map[string]world.ItemDef, len(w.Items))
	for id, it := range w.Items {
		items[id] = world.ItemDef{Slot: it.Slot, Price: it.Price}
	}
	return world.WorldConfig{
		ID:               w.ID,
		TickRateHz:       c.TickRateHz,
		BoundaryR:        w.BoundaryR,
		InteractRange:    w.InteractRange,
		MaxEvents:        w.MaxEvents,
		StarterCoins:     w.StarterCoins,
		StarterItems:     copyCounts(w.StarterItems),
		Items:            items,
		SellBackPermille: w.SellBackPermille,
	}
}

// Layout builds fresh entities for every world spawn. Each call returns
// new maps so a layout can be reused across runs.
func (c Config) Layout() world.Layout {
	w := c.World
	var l world.Layout
	for _, a := range w.Agents {
		l.Agents = append(l.Agents, &world.Agent{
			ID:        a.ID,
			Pos:       world.VecFromArray(a.Pos),
			Coins:     a.Coins,
			Inventory: copyCounts(a.Inventory),
		})
	}
	for _, ct := range w.Containers {
		l.Containers = append(l.Containers, &world.Container{
			ID:        ct.ID,
			Type:      ct.Type,
			Pos:       world.VecFromArray(ct.Pos),
			Capacity:  ct.Capacity,
			Inventory: copyCounts(ct.Inventory),
		})
	}
	for _, s := range w.Shops {
		l.Shops = append(l.Shops, &world.Shop{
			ID:     s.ID,
			Pos:    world.VecFromArray(s.Pos),
			Stock:  copyCounts(s.Stock),
			Prices: copyCounts(s.Prices),
		})
	}
	for _, n := range w.NPCs {
		nodes := make(map[string]world.DialogueNode, len(n.Nodes))
		for name, node := range n.Nodes {
			opts := make([]world.DialogueOption, 0, len(node.Options))
			for _, o := range node.Options {
				opts = append(opts, world.DialogueOption{ID: o.ID, Next: o.Next, SetFlag: o.SetFlag})
			}
			nodes[name] = world.DialogueNode{Text: node.Text, Options: opts}
		}
		l.NPCs = append(l.NPCs, &world.NPC{ID: n.ID, Pos: world.VecFromArray(n.Pos), Nodes: nodes})
	}
	for _, p := range w.Obstacles {
		l.Obstacles = append(l.Obstacles, world.VecFromArray(p))
	}
	return l
}

func copyCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
