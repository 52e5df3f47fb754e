package protocol

// Instant input types. Instants are applied in full at the next tick
// boundary.
const (
	InstantOpen     = "OPEN"
	InstantClose    = "CLOSE"
	InstantDeposit  = "DEPOSIT"
	InstantWithdraw = "WITHDRAW"
	InstantEquip    = "EQUIP"
	InstantUnequip  = "UNEQUIP"
	InstantBuy      = "BUY"
	InstantSell     = "SELL"
	InstantChoose   = "CHOOSE"
	InstantSay      = "SAY"
)

// Task input types. Tasks progress over several ticks.
const (
	TaskMoveTo = "MOVE_TO"
	TaskStop   = "STOP"
)

// Equipment slots accepted by EQUIP/UNEQUIP.
const (
	SlotMainHand = "MAIN_HAND"
	SlotHead     = "HEAD"
	SlotChest    = "CHEST"
	SlotLegs     = "LEGS"
	SlotFeet     = "FEET"
)

// ActMsg carries simulated client input for one agent. Submitting it has no
// result; the effect is only observable in world state.
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Tasks           []TaskReq    `json:"tasks,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	TargetID string `json:"target_id,omitempty"` // container, shop or npc id
	ItemID   string `json:"item_id,omitempty"`
	Count    int    `json:"count,omitempty"`
	Slot     string `json:"slot,omitempty"`
	Option   string `json:"option,omitempty"`

	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
}

type TaskReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Target    [3]int  `json:"target,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

// NewAct wraps instants and tasks in an ACT envelope.
func NewAct(agentID string, tick uint64, instants []InstantReq, tasks []TaskReq) ActMsg {
	return ActMsg{
		Type:            TypeAct,
		ProtocolVersion: Version,
		Tick:            tick,
		AgentID:         agentID,
		Instants:        instants,
		Tasks:           tasks,
	}
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Event is a world-side notification attached to an agent.
type Event map[string]interface{}
