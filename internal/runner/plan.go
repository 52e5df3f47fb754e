// Package runner turns configured plans into scripts and drives them
// against a simulated world.
package runner

import (
	"context"
	"fmt"
	"strings"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/config"
	"botscript.ai/internal/script"
	"botscript.ai/internal/sim/world"
)

// Step is one compiled plan step.
type Step struct {
	Name string
	Run  func(ctx context.Context, a *actions.Actor) (bool, error)
}

// Plan is an ordered list of steps for one actor.
type Plan struct {
	Actor string
	Loop  bool
	Steps []Step
}

// StepError reports the step that ended a plan with a false outcome.
type StepError struct {
	Actor string
	Pass  int
	Index int
	Step  string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("actor %s: pass %d: step %d (%s) failed", e.Actor, e.Pass, e.Index, e.Step)
}

// Compile builds a plan from its config. The config is assumed validated.
func Compile(spec config.ActorSpec) (Plan, error) {
	p := Plan{Actor: spec.ID, Loop: spec.Loop}
	for i, st := range spec.Steps {
		s, err := compileStep(st)
		if err != nil {
			return Plan{}, fmt.Errorf("actor %s step %d: %w", spec.ID, i, err)
		}
		p.Steps = append(p.Steps, s)
	}
	if len(p.Steps) == 0 {
		return Plan{}, fmt.Errorf("actor %s: empty plan", spec.ID)
	}
	return p, nil
}

func compileStep(st config.StepSpec) (Step, error) {
	var run func(ctx context.Context, a *actions.Actor) (bool, error)
	switch st.Op {
	case "walk_to":
		if st.Pos == nil {
			target := st.Target
			run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Approach(ctx, target) }
			break
		}
		pos, tol := world.VecFromArray(*st.Pos), st.Tolerance
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.WalkTo(ctx, pos, tol) }
	case "interact":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Interact(ctx, st.Target) }
	case "close":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.CloseInterface(ctx) }
	case "deposit":
		if st.All {
			run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.DepositAll(ctx, st.Item) }
			break
		}
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Deposit(ctx, st.Item, st.Count) }
	case "withdraw":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Withdraw(ctx, st.Item, st.Count) }
	case "equip":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Equip(ctx, st.Item) }
	case "unequip":
		slot := strings.ToUpper(st.Slot)
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Unequip(ctx, slot) }
	case "buy":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Buy(ctx, st.Item, st.Count) }
	case "sell":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Sell(ctx, st.Item, st.Count) }
	case "choose":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.ChooseDialogue(ctx, st.Option) }
	case "say":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Say(ctx, st.Text) }
	case "bank_deposit":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) {
			return a.BankDeposit(ctx, st.Target, st.Item, st.Count)
		}
	case "bank_withdraw":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) {
			return a.BankWithdraw(ctx, st.Target, st.Item, st.Count)
		}
	case "buy_and_equip":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.BuyAndEquip(ctx, st.Target, st.Item) }
	case "talk":
		opts := append([]string(nil), st.Options...)
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.Talk(ctx, st.Target, opts...) }
	case "wait_ticks":
		run = func(ctx context.Context, a *actions.Actor) (bool, error) { return a.WaitTicks(ctx, st.Ticks) }
	default:
		return Step{}, fmt.Errorf("unknown op %q", st.Op)
	}
	return Step{Name: st.Op, Run: run}, nil
}

// Body returns the script that runs the plan for a. The first false
// outcome ends the task with a *StepError. A looping plan yields for at
// least one tick between passes.
func (p Plan) Body(a *actions.Actor) script.Body {
	return func(ctx context.Context) error {
		for pass := 1; ; pass++ {
			for i, st := range p.Steps {
				ok, err := st.Run(ctx, a)
				if err != nil {
					return fmt.Errorf("actor %s: step %d (%s): %w", p.Actor, i, st.Name, err)
				}
				if !ok {
					return &StepError{Actor: p.Actor, Pass: pass, Index: i, Step: st.Name}
				}
			}
			if !p.Loop {
				return nil
			}
			if _, err := script.Wait(ctx, a.Sched, func() bool { return true }, 1); err != nil {
				return err
			}
		}
	}
}
