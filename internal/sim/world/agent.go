package world

import (
	"sort"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/tasks"
)

type Agent struct {
	ID  string
	Pos Vec3i

	Coins     int
	Inventory map[string]int
	Equipment Equipment

	// OpenUI is the id of the container, shop or NPC the agent is
	// currently interacting with. Empty when nothing is open.
	OpenUI string
	// DialogueNode is the current node while an NPC dialogue is open.
	DialogueNode string
	Flags        map[string]bool
	LastChat     string

	// Monotonic counters of accepted SAY and CHOOSE inputs.
	ChatCount   int
	ChoiceCount int

	MoveTask *tasks.MovementTask

	Events    []protocol.Event
	maxEvents int
}

type Equipment struct {
	MainHand string
	Armor    [4]string
}

var armorSlots = map[string]int{
	protocol.SlotHead:  0,
	protocol.SlotChest: 1,
	protocol.SlotLegs:  2,
	protocol.SlotFeet:  3,
}

// Get returns the item in slot, or "" if the slot is empty or unknown.
func (e *Equipment) Get(slot string) string {
	if slot == protocol.SlotMainHand {
		return e.MainHand
	}
	if i, ok := armorSlots[slot]; ok {
		return e.Armor[i]
	}
	return ""
}

func (e *Equipment) set(slot, item string) bool {
	if slot == protocol.SlotMainHand {
		e.MainHand = item
		return true
	}
	if i, ok := armorSlots[slot]; ok {
		e.Armor[i] = item
		return true
	}
	return false
}

func validSlot(slot string) bool {
	if slot == protocol.SlotMainHand {
		return true
	}
	_, ok := armorSlots[slot]
	return ok
}

func (a *Agent) initDefaults() {
	if a.Inventory == nil {
		a.Inventory = map[string]int{}
	}
	if a.Flags == nil {
		a.Flags = map[string]bool{}
	}
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
	if a.maxEvents > 0 && len(a.Events) > a.maxEvents {
		a.Events = append(a.Events[:0:0], a.Events[len(a.Events)-a.maxEvents:]...)
	}
}

func (a *Agent) TakeEvents() []protocol.Event {
	out := a.Events
	a.Events = nil
	return out
}

func (a *Agent) InventoryList() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(a.Inventory))
	for item, n := range a.Inventory {
		if n <= 0 {
			continue
		}
		out = append(out, protocol.ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

func (a *Agent) take(item string, n int) bool {
	if n <= 0 || a.Inventory[item] < n {
		return false
	}
	a.Inventory[item] -= n
	if a.Inventory[item] == 0 {
		delete(a.Inventory, item)
	}
	return true
}

func (a *Agent) give(item string, n int) {
	if n <= 0 {
		return
	}
	a.Inventory[item] += n
}
