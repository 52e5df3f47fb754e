package world

import "fmt"

// Layout describes the entities spawned into a fresh world.
type Layout struct {
	Agents     []*Agent
	Containers []*Container
	Shops      []*Shop
	NPCs       []*NPC
	Obstacles  []Vec3i
}

// Setup spawns every entity in the layout. It stops at the first invalid
// entity.
func (w *World) Setup(l Layout) error {
	for _, c := range l.Containers {
		if err := w.AddContainer(c); err != nil {
			return err
		}
	}
	for _, s := range l.Shops {
		if err := w.AddShop(s); err != nil {
			return err
		}
	}
	for _, n := range l.NPCs {
		if err := w.AddNPC(n); err != nil {
			return err
		}
	}
	for _, p := range l.Obstacles {
		w.Block(p)
	}
	for _, a := range l.Agents {
		if w.isBlocked(a.Pos) {
			return fmt.Errorf("world: agent %s spawns on blocked cell %v", a.ID, a.Pos.ToArray())
		}
		if err := w.AddAgent(a); err != nil {
			return err
		}
	}
	w.log.Info().
		Int("agents", len(l.Agents)).
		Int("containers", len(l.Containers)).
		Int("shops", len(l.Shops)).
		Int("npcs", len(l.NPCs)).
		Msg("world ready")
	return nil
}
