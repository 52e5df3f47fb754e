package world

import (
	"sort"

	"botscript.ai/internal/protocol"
)

// Read accessors used by script predicates. They run on the tick thread.

func (w *World) HasAgent(id string) bool {
	_, ok := w.agents[id]
	return ok
}

func (w *World) AgentPos(id string) (Vec3i, bool) {
	a := w.agents[id]
	if a == nil {
		return Vec3i{}, false
	}
	return a.Pos, true
}

func (w *World) ItemCount(agentID, item string) int {
	if a := w.agents[agentID]; a != nil {
		return a.Inventory[item]
	}
	return 0
}

func (w *World) Inventory(agentID string) []protocol.ItemStack {
	if a := w.agents[agentID]; a != nil {
		return a.InventoryList()
	}
	return nil
}

func (w *World) Coins(agentID string) int {
	if a := w.agents[agentID]; a != nil {
		return a.Coins
	}
	return 0
}

func (w *World) OpenUI(agentID string) string {
	if a := w.agents[agentID]; a != nil {
		return a.OpenUI
	}
	return ""
}

func (w *World) Equipped(agentID, slot string) string {
	if a := w.agents[agentID]; a != nil {
		return a.Equipment.Get(slot)
	}
	return ""
}

// SlotOf returns the equipment slot an item occupies.
func (w *World) SlotOf(item string) string { return w.cfg.slotOf(item) }

func (w *World) DialogueNode(agentID string) string {
	if a := w.agents[agentID]; a != nil {
		return a.DialogueNode
	}
	return ""
}

func (w *World) HasFlag(agentID, flag string) bool {
	if a := w.agents[agentID]; a != nil {
		return a.Flags[flag]
	}
	return false
}

func (w *World) LastChat(agentID string) string {
	if a := w.agents[agentID]; a != nil {
		return a.LastChat
	}
	return ""
}

func (w *World) ChatCount(agentID string) int {
	if a := w.agents[agentID]; a != nil {
		return a.ChatCount
	}
	return 0
}

func (w *World) ChoiceCount(agentID string) int {
	if a := w.agents[agentID]; a != nil {
		return a.ChoiceCount
	}
	return 0
}

func (w *World) InteractRange() int { return w.cfg.InteractRange }

func (w *World) Moving(agentID string) bool {
	if a := w.agents[agentID]; a != nil {
		return a.MoveTask != nil
	}
	return false
}

// EntityPos locates a container, shop or NPC.
func (w *World) EntityPos(id string) (Vec3i, bool) { return w.entityPos(id) }

// EntityKind reports "BANK", "CHEST", "SHOP" or "NPC", or "" when unknown.
func (w *World) EntityKind(id string) string {
	if c, ok := w.containers[id]; ok {
		return c.Type
	}
	if _, ok := w.shops[id]; ok {
		return "SHOP"
	}
	if _, ok := w.npcs[id]; ok {
		return "NPC"
	}
	return ""
}

func (w *World) ContainerCount(containerID, item string) int {
	if c := w.containers[containerID]; c != nil {
		return c.Inventory[item]
	}
	return 0
}

func (w *World) ShopStock(shopID, item string) int {
	if s := w.shops[shopID]; s != nil {
		return s.Stock[item]
	}
	return 0
}

// ShopPrice is the price the shop charges for one item.
func (w *World) ShopPrice(shopID, item string) (int, bool) {
	s := w.shops[shopID]
	if s == nil {
		return 0, false
	}
	return w.priceOf(s, item)
}

// DialogueOptions lists the option ids available at the agent's current
// dialogue node.
func (w *World) DialogueOptions(agentID string) []string {
	a := w.agents[agentID]
	if a == nil {
		return nil
	}
	n := w.npcs[a.OpenUI]
	if n == nil {
		return nil
	}
	var out []string
	for _, o := range n.Nodes[a.DialogueNode].Options {
		out = append(out, o.ID)
	}
	return out
}

// LastRejection returns the most recent rejected input for the agent.
func (w *World) LastRejection(agentID string) (AuditEntry, bool) {
	e, ok := w.lastReject[agentID]
	return e, ok
}

// TakeEvents drains the agent's pending events.
func (w *World) TakeEvents(agentID string) []protocol.Event {
	if a := w.agents[agentID]; a != nil {
		return a.TakeEvents()
	}
	return nil
}

type Stats struct {
	Tick       uint64
	Agents     int
	Containers int
	Shops      int
	NPCs       int
	Applied    uint64
	Rejected   uint64
}

func (w *World) Stats() Stats {
	return Stats{
		Tick:       w.tick.Load(),
		Agents:     len(w.agents),
		Containers: len(w.containers),
		Shops:      len(w.shops),
		NPCs:       len(w.npcs),
		Applied:    w.applied.Load(),
		Rejected:   w.rejected.Load(),
	}
}

// AgentIDs returns agent ids in sorted order.
func (w *World) AgentIDs() []string {
	out := make([]string, 0, len(w.agents))
	for id := range w.agents {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
