package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"botscript.ai/internal/protocol"
)

var (
	ErrDuplicateEntity = errors.New("world: duplicate entity id")
	ErrUnknownAgent    = errors.New("world: unknown agent")
)

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Actions []RecordedAction `json:"actions,omitempty"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

// AuditEntry records the outcome of one applied input.
type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Ref     string `json:"ref,omitempty"`
	Target  string `json:"target,omitempty"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// World is a single-threaded authoritative simulation driven by a tick
// scheduler. All state must be accessed only from the tick thread; Submit is
// the one entry point that is safe from any goroutine.
type World struct {
	cfg WorldConfig
	log zerolog.Logger

	tick atomic.Uint64

	agents     map[string]*Agent
	containers map[string]*Container
	shops      map[string]*Shop
	npcs       map[string]*NPC
	blocked    map[Vec3i]bool

	inboxMu sync.Mutex
	inbox   []ActionEnvelope

	applied    atomic.Uint64
	rejected   atomic.Uint64
	lastReject map[string]AuditEntry

	tickLogger  TickLogger
	auditLogger AuditLogger
}

type Option func(*World)

func WithLogger(l zerolog.Logger) Option {
	return func(w *World) { w.log = l }
}

func New(cfg WorldConfig, opts ...Option) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:        cfg,
		log:        zerolog.Nop(),
		agents:     map[string]*Agent{},
		containers: map[string]*Container{},
		shops:      map[string]*Shop{},
		npcs:       map[string]*NPC{},
		blocked:    map[Vec3i]bool{},
		lastReject: map[string]AuditEntry{},
	}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.With().Str("component", "world").Str("world", cfg.ID).Logger()
	return w
}

func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) entityExists(id string) bool {
	if _, ok := w.agents[id]; ok {
		return true
	}
	if _, ok := w.containers[id]; ok {
		return true
	}
	if _, ok := w.shops[id]; ok {
		return true
	}
	_, ok := w.npcs[id]
	return ok
}

// AddAgent spawns an agent. Starter coins and items apply only when the
// agent carries none of its own.
func (w *World) AddAgent(a *Agent) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("world: agent id required")
	}
	if w.entityExists(a.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, a.ID)
	}
	a.initDefaults()
	if len(a.Inventory) == 0 {
		for item, n := range w.cfg.StarterItems {
			a.give(item, n)
		}
	}
	if a.Coins == 0 {
		a.Coins = w.cfg.StarterCoins
	}
	a.maxEvents = w.cfg.MaxEvents
	w.agents[a.ID] = a
	return nil
}

func (w *World) AddContainer(c *Container) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("world: container id required")
	}
	if c.Type != ContainerBank && c.Type != ContainerChest {
		return fmt.Errorf("world: container %s: bad type %q", c.ID, c.Type)
	}
	if w.entityExists(c.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, c.ID)
	}
	if c.Inventory == nil {
		c.Inventory = map[string]int{}
	}
	w.containers[c.ID] = c
	return nil
}

func (w *World) AddShop(s *Shop) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("world: shop id required")
	}
	if w.entityExists(s.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, s.ID)
	}
	if s.Stock == nil {
		s.Stock = map[string]int{}
	}
	if s.Prices == nil {
		s.Prices = map[string]int{}
	}
	w.shops[s.ID] = s
	return nil
}

func (w *World) AddNPC(n *NPC) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("world: npc id required")
	}
	if w.entityExists(n.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, n.ID)
	}
	if _, ok := n.Nodes[DialogueStart]; !ok {
		return fmt.Errorf("world: npc %s: missing %q dialogue node", n.ID, DialogueStart)
	}
	for name, node := range n.Nodes {
		for _, o := range node.Options {
			if _, ok := n.Nodes[o.Next]; o.Next != "" && !ok {
				return fmt.Errorf("world: npc %s: node %s option %s: unknown next %q", n.ID, name, o.ID, o.Next)
			}
		}
	}
	w.npcs[n.ID] = n
	return nil
}

// Block marks a cell as impassable for movement.
func (w *World) Block(p Vec3i) { w.blocked[Vec3i{X: p.X, Z: p.Z}] = true }

func (w *World) isBlocked(p Vec3i) bool {
	return w.blocked[Vec3i{X: p.X, Z: p.Z}]
}

func (w *World) inBounds(p Vec3i) bool {
	r := w.cfg.BoundaryR
	return p.X >= -r && p.X <= r && p.Z >= -r && p.Z <= r
}

// Submit queues an input for the agent. It is applied at the next tick
// boundary in receive order. Submit never reports rule failures; those are
// only visible as unchanged world state and a rejection event.
func (w *World) Submit(act protocol.ActMsg) error {
	if act.AgentID == "" {
		return fmt.Errorf("%w: empty agent id", ErrUnknownAgent)
	}
	w.inboxMu.Lock()
	w.inbox = append(w.inbox, ActionEnvelope{AgentID: act.AgentID, Act: act})
	w.inboxMu.Unlock()
	return nil
}

// Pending reports how many inputs wait for the next tick.
func (w *World) Pending() int {
	w.inboxMu.Lock()
	defer w.inboxMu.Unlock()
	return len(w.inbox)
}

func (w *World) drainInbox() []ActionEnvelope {
	w.inboxMu.Lock()
	defer w.inboxMu.Unlock()
	out := w.inbox
	w.inbox = nil
	return out
}

// RunTick advances the world by one tick: inputs first, then movement.
func (w *World) RunTick(nowTick uint64) {
	w.tick.Store(nowTick)

	envs := w.drainInbox()
	var recorded []RecordedAction
	for _, env := range envs {
		a := w.agents[env.AgentID]
		if a == nil {
			w.audit(AuditEntry{Tick: nowTick, Actor: env.AgentID, Action: "ACT", Code: protocol.ErrInvalidTarget, Message: "unknown agent"})
			continue
		}
		w.applyAct(a, env.Act, nowTick)
		recorded = append(recorded, RecordedAction{AgentID: env.AgentID, Act: env.Act})
	}

	w.systemMovement(nowTick)

	if w.tickLogger != nil && len(recorded) > 0 {
		if err := w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Actions: recorded}); err != nil {
			w.log.Warn().Err(err).Uint64("tick", nowTick).Msg("tick log write failed")
		}
	}
}

func (w *World) audit(e AuditEntry) {
	if e.OK {
		w.applied.Add(1)
	} else {
		w.rejected.Add(1)
		w.lastReject[e.Actor] = e
		w.log.Debug().Str("actor", e.Actor).Str("action", e.Action).Str("code", e.Code).Msg(e.Message)
	}
	if w.auditLogger != nil {
		if err := w.auditLogger.WriteAudit(e); err != nil {
			w.log.Warn().Err(err).Msg("audit write failed")
		}
	}
}

func (w *World) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
