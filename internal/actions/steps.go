package actions

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/script"
	"botscript.ai/internal/sim/world"
)

const (
	kindBank  = world.ContainerBank
	kindChest = world.ContainerChest
	kindShop  = "SHOP"
	kindNPC   = "NPC"
)

// WalkTimeout is the travel bound for a distance: two ticks per block plus
// slack for detours.
func WalkTimeout(dist int) int { return 2*dist + 20 }

func within(pos, target world.Vec3i, tolerance float64) bool {
	return world.DistXZ(pos, target) <= int(math.Ceil(tolerance))
}

// WalkTo moves the agent until it is within tolerance of target.
func (a *Actor) WalkTo(ctx context.Context, target world.Vec3i, tolerance float64) (bool, error) {
	const name = "walk_to"
	detail := fmt.Sprintf("%v tol=%g", target.ToArray(), tolerance)
	pos, ok := a.World.AgentPos(a.ID)
	if !ok {
		return a.reject(ctx, name, detail, "unknown agent")
	}
	if tolerance < 0 {
		return a.reject(ctx, name, detail, "negative tolerance")
	}
	if within(pos, target, tolerance) {
		return a.satisfied(ctx, name, detail)
	}
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.task(protocol.TaskReq{Type: protocol.TaskMoveTo, Target: target.ToArray(), Tolerance: tolerance}),
		timeout: WalkTimeout(world.DistXZ(pos, target)),
		pred: func() bool {
			p, _ := a.World.AgentPos(a.ID)
			return within(p, target, tolerance)
		},
	})
}

// Interact opens a container, shop or NPC dialogue that is in range.
func (a *Actor) Interact(ctx context.Context, entityID string) (bool, error) {
	const name = "interact"
	if a.World.EntityKind(entityID) == "" {
		return a.reject(ctx, name, entityID, "unknown entity")
	}
	if a.World.OpenUI(a.ID) == entityID {
		return a.satisfied(ctx, name, entityID)
	}
	pos, _ := a.World.AgentPos(a.ID)
	epos, _ := a.World.EntityPos(entityID)
	if world.DistXZ(pos, epos) > a.World.InteractRange() {
		return a.reject(ctx, name, entityID, "out of range")
	}
	return a.run(ctx, step{
		name:    name,
		detail:  entityID,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantOpen, TargetID: entityID}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.OpenUI(a.ID) == entityID },
	})
}

func (a *Actor) CloseInterface(ctx context.Context) (bool, error) {
	const name = "close"
	open := a.World.OpenUI(a.ID)
	if open == "" {
		return a.reject(ctx, name, "", "nothing open")
	}
	return a.run(ctx, step{
		name:    name,
		detail:  open,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantClose}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.OpenUI(a.ID) != open },
	})
}

// openOf returns the open interface if it has one of kinds.
func (a *Actor) openOf(kinds ...string) (string, bool) {
	open := a.World.OpenUI(a.ID)
	if open == "" {
		return "", false
	}
	k := a.World.EntityKind(open)
	for _, want := range kinds {
		if k == want {
			return open, true
		}
	}
	return "", false
}

// Deposit moves n items into the open bank or chest.
func (a *Actor) Deposit(ctx context.Context, item string, n int) (bool, error) {
	const name = "deposit"
	detail := fmt.Sprintf("%s x%d", item, n)
	box, ok := a.openOf(kindBank, kindChest)
	if !ok {
		return a.reject(ctx, name, detail, "no container open")
	}
	if n <= 0 {
		return a.reject(ctx, name, detail, "count must be positive")
	}
	if a.World.ItemCount(a.ID, item) < n {
		return a.reject(ctx, name, detail, "not enough items")
	}
	want := a.World.ContainerCount(box, item) + n
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantDeposit, TargetID: box, ItemID: item, Count: n}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ContainerCount(box, item) >= want },
	})
}

// DepositAll deposits the whole stack of item.
func (a *Actor) DepositAll(ctx context.Context, item string) (bool, error) {
	n := a.World.ItemCount(a.ID, item)
	if n == 0 {
		return a.reject(ctx, "deposit", item+" (all)", "not enough items")
	}
	return a.Deposit(ctx, item, n)
}

// Withdraw takes n items from the open bank or chest.
func (a *Actor) Withdraw(ctx context.Context, item string, n int) (bool, error) {
	const name = "withdraw"
	detail := fmt.Sprintf("%s x%d", item, n)
	box, ok := a.openOf(kindBank, kindChest)
	if !ok {
		return a.reject(ctx, name, detail, "no container open")
	}
	if n <= 0 {
		return a.reject(ctx, name, detail, "count must be positive")
	}
	if a.World.ContainerCount(box, item) < n {
		return a.reject(ctx, name, detail, "container lacks items")
	}
	want := a.World.ItemCount(a.ID, item) + n
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantWithdraw, TargetID: box, ItemID: item, Count: n}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ItemCount(a.ID, item) >= want },
	})
}

func (a *Actor) Equip(ctx context.Context, item string) (bool, error) {
	const name = "equip"
	slot := a.World.SlotOf(item)
	detail := item + " -> " + slot
	if a.World.Equipped(a.ID, slot) == item {
		return a.reject(ctx, name, detail, "already equipped")
	}
	if a.World.ItemCount(a.ID, item) < 1 {
		return a.reject(ctx, name, detail, "item not in inventory")
	}
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantEquip, ItemID: item, Slot: slot}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.Equipped(a.ID, slot) == item },
	})
}

func (a *Actor) Unequip(ctx context.Context, slot string) (bool, error) {
	const name = "unequip"
	if a.World.Equipped(a.ID, slot) == "" {
		return a.reject(ctx, name, slot, "slot empty")
	}
	return a.run(ctx, step{
		name:    name,
		detail:  slot,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantUnequip, Slot: slot}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.Equipped(a.ID, slot) == "" },
	})
}

// Buy purchases n items from the open shop.
func (a *Actor) Buy(ctx context.Context, item string, n int) (bool, error) {
	const name = "buy"
	detail := fmt.Sprintf("%s x%d", item, n)
	shop, ok := a.openOf(kindShop)
	if !ok {
		return a.reject(ctx, name, detail, "no shop open")
	}
	if n <= 0 {
		return a.reject(ctx, name, detail, "count must be positive")
	}
	price, ok := a.World.ShopPrice(shop, item)
	if !ok {
		return a.reject(ctx, name, detail, "item not sold")
	}
	if a.World.ShopStock(shop, item) < n {
		return a.reject(ctx, name, detail, "out of stock")
	}
	if a.World.Coins(a.ID) < price*n {
		return a.reject(ctx, name, detail, "not enough coins")
	}
	want := a.World.ItemCount(a.ID, item) + n
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantBuy, TargetID: shop, ItemID: item, Count: n}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ItemCount(a.ID, item) >= want },
	})
}

// Sell sells n items to the open shop.
func (a *Actor) Sell(ctx context.Context, item string, n int) (bool, error) {
	const name = "sell"
	detail := fmt.Sprintf("%s x%d", item, n)
	shop, ok := a.openOf(kindShop)
	if !ok {
		return a.reject(ctx, name, detail, "no shop open")
	}
	if n <= 0 {
		return a.reject(ctx, name, detail, "count must be positive")
	}
	if _, ok := a.World.ShopPrice(shop, item); !ok {
		return a.reject(ctx, name, detail, "shop does not buy item")
	}
	have := a.World.ItemCount(a.ID, item)
	if have < n {
		return a.reject(ctx, name, detail, "not enough items")
	}
	want := have - n
	return a.run(ctx, step{
		name:    name,
		detail:  detail,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantSell, TargetID: shop, ItemID: item, Count: n}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ItemCount(a.ID, item) <= want },
	})
}

// ChooseDialogue picks an option at the current node of the open dialogue.
func (a *Actor) ChooseDialogue(ctx context.Context, option string) (bool, error) {
	const name = "choose"
	if _, ok := a.openOf(kindNPC); !ok {
		return a.reject(ctx, name, option, "no dialogue open")
	}
	offered := false
	for _, o := range a.World.DialogueOptions(a.ID) {
		if o == option {
			offered = true
			break
		}
	}
	if !offered {
		return a.reject(ctx, name, option, "option not offered")
	}
	want := a.World.ChoiceCount(a.ID) + 1
	return a.run(ctx, step{
		name:    name,
		detail:  option,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantChoose, Option: option}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ChoiceCount(a.ID) >= want },
	})
}

// Say sends a chat line and waits until the world has accepted it.
func (a *Actor) Say(ctx context.Context, text string) (bool, error) {
	const name = "say"
	if text == "" {
		return a.reject(ctx, name, "", "empty text")
	}
	want := a.World.ChatCount(a.ID) + 1
	return a.run(ctx, step{
		name:    name,
		detail:  text,
		act:     a.instant(protocol.InstantReq{Type: protocol.InstantSay, Text: text}),
		timeout: a.timeout(),
		pred:    func() bool { return a.World.ChatCount(a.ID) >= want },
	})
}

// Wait exposes a raw predicate wait to scripts. ticks <= 0 means the
// default timeout.
func (a *Actor) Wait(ctx context.Context, label string, pred script.Predicate, ticks int) (bool, error) {
	if pred == nil {
		return a.reject(ctx, "wait", label, "nil predicate")
	}
	if ticks <= 0 {
		ticks = a.timeout()
	}
	return a.run(ctx, step{name: "wait", detail: label, pred: pred, timeout: ticks})
}

// WaitTicks suspends for exactly n ticks.
func (a *Actor) WaitTicks(ctx context.Context, n int) (bool, error) {
	detail := strconv.Itoa(n)
	if n <= 0 {
		return a.reject(ctx, "wait_ticks", detail, "ticks must be positive")
	}
	return a.run(ctx, step{
		name:    "wait_ticks",
		detail:  detail,
		timeout: n + 1,
		pred:    a.ticksElapsed(n),
	})
}

// ticksElapsed holds once n ticks have started after the current one.
func (a *Actor) ticksElapsed(n int) script.Predicate {
	until := a.Sched.CurrentTick() + uint64(n)
	return func() bool { return a.Sched.CurrentTick() >= until }
}
