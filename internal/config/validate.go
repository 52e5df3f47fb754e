package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"botscript.ai/internal/protocol"
)

//go:embed schemas/config.schema.json
var configSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ErrSchema wraps every schema violation.
var ErrSchema = errors.New("config schema")

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", configSchemaJSON)
	})
	return schema, schemaErr
}

// validateSchema checks the raw YAML document. It is re-encoded as JSON so
// the validator sees the same types it would for a JSON config.
func validateSchema(b []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

type entityKind int

const (
	kindContainer entityKind = iota + 1
	kindShop
	kindNPC
)

func (c Config) Validate() error {
	c.Normalize()
	w := c.World
	if w.InteractRange <= 0 {
		return fmt.Errorf("world interact_range must be > 0")
	}
	if w.BoundaryR <= 0 {
		return fmt.Errorf("world boundary_r must be > 0")
	}
	for item, def := range w.Items {
		if def.Slot != "" && !validSlot(def.Slot) {
			return fmt.Errorf("item %s: unknown slot %q", item, def.Slot)
		}
	}

	ids := map[string]entityKind{}
	agents := map[string]bool{}
	claim := func(id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("entity id must not be empty")
		}
		if _, dup := ids[id]; dup || agents[id] {
			return fmt.Errorf("duplicate entity id: %s", id)
		}
		return nil
	}
	for _, a := range w.Agents {
		if err := claim(a.ID); err != nil {
			return err
		}
		agents[a.ID] = true
	}
	for _, ct := range w.Containers {
		if err := claim(ct.ID); err != nil {
			return err
		}
		if ct.Type != "BANK" && ct.Type != "CHEST" {
			return fmt.Errorf("container %s: bad type %q", ct.ID, ct.Type)
		}
		ids[ct.ID] = kindContainer
	}
	for _, s := range w.Shops {
		if err := claim(s.ID); err != nil {
			return err
		}
		ids[s.ID] = kindShop
	}
	for _, n := range w.NPCs {
		if err := claim(n.ID); err != nil {
			return err
		}
		if _, ok := n.Nodes["start"]; !ok {
			return fmt.Errorf("npc %s: missing start node", n.ID)
		}
		for name, node := range n.Nodes {
			for _, o := range node.Options {
				if o.Next != "" {
					if _, ok := n.Nodes[o.Next]; !ok {
						return fmt.Errorf("npc %s: node %s option %s: unknown next %q", n.ID, name, o.ID, o.Next)
					}
				}
			}
		}
		ids[n.ID] = kindNPC
	}

	actors := map[string]bool{}
	for i, a := range c.Actors {
		if a.ID == "" {
			return fmt.Errorf("actors[%d]: id must not be empty", i)
		}
		if actors[a.ID] {
			return fmt.Errorf("duplicate actor: %s", a.ID)
		}
		actors[a.ID] = true
		if !agents[a.ID] {
			return fmt.Errorf("actor %s: no agent with that id", a.ID)
		}
		if len(a.Steps) == 0 {
			return fmt.Errorf("actor %s: plan has no steps", a.ID)
		}
		for j, st := range a.Steps {
			if err := st.validate(ids); err != nil {
				return fmt.Errorf("actor %s step %d (%s): %w", a.ID, j, st.Op, err)
			}
		}
	}
	return nil
}

func (st StepSpec) validate(ids map[string]entityKind) error {
	needTarget := func(want entityKind, what string) error {
		if st.Target == "" {
			return fmt.Errorf("target required")
		}
		k, ok := ids[st.Target]
		if !ok {
			return fmt.Errorf("unknown target %q", st.Target)
		}
		if want != 0 && k != want {
			return fmt.Errorf("target %q is not a %s", st.Target, what)
		}
		return nil
	}
	needItem := func(countRequired bool) error {
		if st.Item == "" {
			return fmt.Errorf("item required")
		}
		if countRequired && st.Count <= 0 {
			return fmt.Errorf("count must be > 0")
		}
		return nil
	}

	switch st.Op {
	case "walk_to":
		if st.Pos == nil && st.Target == "" {
			return fmt.Errorf("pos or target required")
		}
		if st.Pos == nil {
			return needTarget(0, "")
		}
		return nil
	case "interact":
		return needTarget(0, "")
	case "close":
		return nil
	case "deposit":
		if st.All {
			return needItem(false)
		}
		return needItem(true)
	case "withdraw", "buy", "sell":
		return needItem(true)
	case "equip":
		return needItem(false)
	case "unequip":
		if !validSlot(st.Slot) {
			return fmt.Errorf("unknown slot %q", st.Slot)
		}
		return nil
	case "choose":
		if st.Option == "" {
			return fmt.Errorf("option required")
		}
		return nil
	case "say":
		if st.Text == "" {
			return fmt.Errorf("text required")
		}
		return nil
	case "bank_deposit", "bank_withdraw":
		if err := needTarget(kindContainer, "container"); err != nil {
			return err
		}
		return needItem(true)
	case "buy_and_equip":
		if err := needTarget(kindShop, "shop"); err != nil {
			return err
		}
		return needItem(false)
	case "talk":
		return needTarget(kindNPC, "npc")
	case "wait_ticks":
		if st.Ticks <= 0 {
			return fmt.Errorf("ticks must be > 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown op")
	}
}

func validSlot(slot string) bool {
	switch slot {
	case protocol.SlotMainHand, protocol.SlotHead, protocol.SlotChest, protocol.SlotLegs, protocol.SlotFeet:
		return true
	}
	return false
}
