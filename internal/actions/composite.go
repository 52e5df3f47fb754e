package actions

import (
	"context"
	"fmt"
	"strings"
)

// link is one step of a composite.
type link func(ctx context.Context) (bool, error)

// chain runs links in order and stops at the first false or error. The
// composite itself is recorded once the chain ends.
func (a *Actor) chain(ctx context.Context, name, detail string, links ...link) (bool, error) {
	start := a.World.CurrentTick()
	log := a.logger(ctx, name)
	log.Info().Str("detail", detail).Int("links", len(links)).Msg("composite start")
	for i, l := range links {
		ok, err := l(ctx)
		if err != nil || !ok {
			reason := fmt.Sprintf("link %d failed", i)
			if err != nil {
				reason = err.Error()
			}
			log.Info().Int("link", i).Msg("composite aborted")
			a.record(ctx, name, detail, start, false, reason)
			return false, err
		}
	}
	a.record(ctx, name, detail, start, true, "")
	return true, nil
}

func (a *Actor) approach(entityID string) link {
	return func(ctx context.Context) (bool, error) {
		pos, ok := a.World.EntityPos(entityID)
		if !ok {
			return a.reject(ctx, "walk_to", entityID, "unknown entity")
		}
		return a.WalkTo(ctx, pos, float64(a.World.InteractRange()))
	}
}

// Approach walks into interaction range of an entity.
func (a *Actor) Approach(ctx context.Context, entityID string) (bool, error) {
	return a.approach(entityID)(ctx)
}

func (a *Actor) requireKind(ctx context.Context, name, id string, kinds ...string) (bool, error) {
	k := a.World.EntityKind(id)
	for _, want := range kinds {
		if k == want {
			return true, nil
		}
	}
	return a.reject(ctx, name, id, fmt.Sprintf("not a %s", strings.ToLower(strings.Join(kinds, "/"))))
}

// BankDeposit walks to a bank, opens it, deposits n items and closes it.
func (a *Actor) BankDeposit(ctx context.Context, bankID, item string, n int) (bool, error) {
	const name = "bank_deposit"
	if ok, err := a.requireKind(ctx, name, bankID, kindBank); !ok {
		return ok, err
	}
	return a.chain(ctx, name, fmt.Sprintf("%s %s x%d", bankID, item, n),
		a.approach(bankID),
		func(ctx context.Context) (bool, error) { return a.Interact(ctx, bankID) },
		func(ctx context.Context) (bool, error) { return a.Deposit(ctx, item, n) },
		a.CloseInterface,
	)
}

// BankWithdraw walks to a bank, opens it, withdraws n items and closes it.
func (a *Actor) BankWithdraw(ctx context.Context, bankID, item string, n int) (bool, error) {
	const name = "bank_withdraw"
	if ok, err := a.requireKind(ctx, name, bankID, kindBank); !ok {
		return ok, err
	}
	return a.chain(ctx, name, fmt.Sprintf("%s %s x%d", bankID, item, n),
		a.approach(bankID),
		func(ctx context.Context) (bool, error) { return a.Interact(ctx, bankID) },
		func(ctx context.Context) (bool, error) { return a.Withdraw(ctx, item, n) },
		a.CloseInterface,
	)
}

// BuyAndEquip walks to a shop, buys one item, closes the shop and equips it.
func (a *Actor) BuyAndEquip(ctx context.Context, shopID, item string) (bool, error) {
	const name = "buy_and_equip"
	if ok, err := a.requireKind(ctx, name, shopID, kindShop); !ok {
		return ok, err
	}
	return a.chain(ctx, name, shopID+" "+item,
		a.approach(shopID),
		func(ctx context.Context) (bool, error) { return a.Interact(ctx, shopID) },
		func(ctx context.Context) (bool, error) { return a.Buy(ctx, item, 1) },
		a.CloseInterface,
		func(ctx context.Context) (bool, error) { return a.Equip(ctx, item) },
	)
}

// Talk walks to an NPC, opens its dialogue and picks each option in turn.
func (a *Actor) Talk(ctx context.Context, npcID string, options ...string) (bool, error) {
	const name = "talk"
	if ok, err := a.requireKind(ctx, name, npcID, kindNPC); !ok {
		return ok, err
	}
	links := []link{
		a.approach(npcID),
		func(ctx context.Context) (bool, error) { return a.Interact(ctx, npcID) },
	}
	for _, opt := range options {
		opt := opt
		links = append(links, func(ctx context.Context) (bool, error) { return a.ChooseDialogue(ctx, opt) })
	}
	return a.chain(ctx, name, npcID+" "+strings.Join(options, ","), links...)
}
