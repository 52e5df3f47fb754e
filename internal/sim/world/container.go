package world

import (
	"sort"

	"botscript.ai/internal/protocol"
)

const (
	ContainerBank  = "BANK"
	ContainerChest = "CHEST"
)

type Container struct {
	ID   string
	Type string
	Pos  Vec3i

	// Capacity bounds the total item count; 0 means unbounded.
	Capacity  int
	Inventory map[string]int
}

func (c *Container) InventoryList() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(c.Inventory))
	for item, n := range c.Inventory {
		if n <= 0 {
			continue
		}
		out = append(out, protocol.ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

func (c *Container) total() int {
	n := 0
	for _, v := range c.Inventory {
		n += v
	}
	return n
}

func (c *Container) canAdd(n int) bool {
	return c.Capacity <= 0 || c.total()+n <= c.Capacity
}

func (c *Container) take(item string, n int) bool {
	if n <= 0 || c.Inventory[item] < n {
		return false
	}
	c.Inventory[item] -= n
	if c.Inventory[item] == 0 {
		delete(c.Inventory, item)
	}
	return true
}
