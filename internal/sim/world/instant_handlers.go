package world

import "botscript.ai/internal/protocol"

func (w *World) entityPos(id string) (Vec3i, bool) {
	if c, ok := w.containers[id]; ok {
		return c.Pos, true
	}
	if s, ok := w.shops[id]; ok {
		return s.Pos, true
	}
	if n, ok := w.npcs[id]; ok {
		return n.Pos, true
	}
	return Vec3i{}, false
}

func handleOpen(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	pos, ok := w.entityPos(inst.TargetID)
	if !ok {
		return protocol.ErrInvalidTarget, "target not found"
	}
	if distXZ(a.Pos, pos) > w.cfg.InteractRange {
		return protocol.ErrTooFar, "target out of range"
	}
	if a.OpenUI == inst.TargetID {
		return "", ""
	}
	a.OpenUI = inst.TargetID
	a.DialogueNode = ""
	if _, ok := w.npcs[inst.TargetID]; ok {
		a.DialogueNode = DialogueStart
	}
	return "", ""
}

func handleClose(_ *World, a *Agent, _ protocol.InstantReq, _ uint64) (string, string) {
	if a.OpenUI == "" {
		return protocol.ErrNotOpen, "nothing open"
	}
	a.OpenUI = ""
	a.DialogueNode = ""
	return "", ""
}

// openContainer resolves the container the instant addresses. A non-empty
// target must match the open interface.
func (w *World) openContainer(a *Agent, target string) *Container {
	if a.OpenUI == "" || (target != "" && target != a.OpenUI) {
		return nil
	}
	return w.containers[a.OpenUI]
}

func (w *World) openShop(a *Agent, target string) *Shop {
	if a.OpenUI == "" || (target != "" && target != a.OpenUI) {
		return nil
	}
	return w.shops[a.OpenUI]
}

func handleDeposit(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	c := w.openContainer(a, inst.TargetID)
	if c == nil {
		return protocol.ErrNotOpen, "no container open"
	}
	if inst.ItemID == "" || inst.Count <= 0 {
		return protocol.ErrBadRequest, "item and positive count required"
	}
	if a.Inventory[inst.ItemID] < inst.Count {
		return protocol.ErrNoResource, "not enough items"
	}
	if !c.canAdd(inst.Count) {
		return protocol.ErrBlocked, "container full"
	}
	a.take(inst.ItemID, inst.Count)
	c.Inventory[inst.ItemID] += inst.Count
	return "", ""
}

func handleWithdraw(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	c := w.openContainer(a, inst.TargetID)
	if c == nil {
		return protocol.ErrNotOpen, "no container open"
	}
	if inst.ItemID == "" || inst.Count <= 0 {
		return protocol.ErrBadRequest, "item and positive count required"
	}
	if !c.take(inst.ItemID, inst.Count) {
		return protocol.ErrNoResource, "container lacks items"
	}
	a.give(inst.ItemID, inst.Count)
	return "", ""
}

func handleEquip(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	if inst.ItemID == "" {
		return protocol.ErrBadRequest, "item required"
	}
	slot := inst.Slot
	if slot == "" {
		slot = w.cfg.slotOf(inst.ItemID)
	}
	if !validSlot(slot) {
		return protocol.ErrBadRequest, "bad slot"
	}
	if a.Equipment.Get(slot) == inst.ItemID {
		return protocol.ErrConflict, "already equipped"
	}
	if !a.take(inst.ItemID, 1) {
		return protocol.ErrNoResource, "item not in inventory"
	}
	if prev := a.Equipment.Get(slot); prev != "" {
		a.give(prev, 1)
	}
	a.Equipment.set(slot, inst.ItemID)
	return "", ""
}

func handleUnequip(_ *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	if !validSlot(inst.Slot) {
		return protocol.ErrBadRequest, "bad slot"
	}
	prev := a.Equipment.Get(inst.Slot)
	if prev == "" {
		return protocol.ErrNoResource, "slot empty"
	}
	a.Equipment.set(inst.Slot, "")
	a.give(prev, 1)
	return "", ""
}

func handleBuy(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	s := w.openShop(a, inst.TargetID)
	if s == nil {
		return protocol.ErrNotOpen, "no shop open"
	}
	if inst.ItemID == "" || inst.Count <= 0 {
		return protocol.ErrBadRequest, "item and positive count required"
	}
	price, ok := w.priceOf(s, inst.ItemID)
	if !ok {
		return protocol.ErrInvalidTarget, "item not sold here"
	}
	if s.Stock[inst.ItemID] < inst.Count {
		return protocol.ErrNoResource, "out of stock"
	}
	cost := price * inst.Count
	if a.Coins < cost {
		return protocol.ErrNoResource, "not enough coins"
	}
	s.Stock[inst.ItemID] -= inst.Count
	a.Coins -= cost
	a.give(inst.ItemID, inst.Count)
	return "", ""
}

func handleSell(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	s := w.openShop(a, inst.TargetID)
	if s == nil {
		return protocol.ErrNotOpen, "no shop open"
	}
	if inst.ItemID == "" || inst.Count <= 0 {
		return protocol.ErrBadRequest, "item and positive count required"
	}
	price, ok := w.priceOf(s, inst.ItemID)
	if !ok {
		return protocol.ErrInvalidTarget, "shop does not buy item"
	}
	if !a.take(inst.ItemID, inst.Count) {
		return protocol.ErrNoResource, "not enough items"
	}
	s.Stock[inst.ItemID] += inst.Count
	a.Coins += w.sellBackPrice(price) * inst.Count
	return "", ""
}

func handleChoose(w *World, a *Agent, inst protocol.InstantReq, _ uint64) (string, string) {
	n := w.npcs[a.OpenUI]
	if n == nil || (inst.TargetID != "" && inst.TargetID != a.OpenUI) {
		return protocol.ErrNotOpen, "no dialogue open"
	}
	opt, ok := n.option(a.DialogueNode, inst.Option)
	if !ok {
		return protocol.ErrInvalidTarget, "option not available"
	}
	a.ChoiceCount++
	if opt.SetFlag != "" {
		a.Flags[opt.SetFlag] = true
	}
	if opt.Next == "" {
		a.OpenUI = ""
		a.DialogueNode = ""
		return "", ""
	}
	a.DialogueNode = opt.Next
	return "", ""
}

func handleSay(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) (string, string) {
	if inst.Text == "" {
		return protocol.ErrBadRequest, "empty text"
	}
	ch := inst.Channel
	if ch == "" {
		ch = "LOCAL"
	}
	a.LastChat = inst.Text
	a.ChatCount++
	ev := protocol.Event{"t": nowTick, "type": "CHAT", "from": a.ID, "channel": ch, "text": inst.Text}
	for _, other := range w.sortedAgents() {
		other.AddEvent(ev)
	}
	return "", ""
}
