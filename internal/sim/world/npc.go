package world

// DialogueStart is the node every dialogue opens on.
const DialogueStart = "start"

type NPC struct {
	ID    string
	Pos   Vec3i
	Nodes map[string]DialogueNode
}

type DialogueNode struct {
	Text    string
	Options []DialogueOption
}

// DialogueOption moves the dialogue to Next. An empty Next ends the
// dialogue and closes the interface. SetFlag, when set, is recorded on the
// choosing agent.
type DialogueOption struct {
	ID      string
	Next    string
	SetFlag string
}

func (n *NPC) option(node, id string) (DialogueOption, bool) {
	cur, ok := n.Nodes[node]
	if !ok {
		return DialogueOption{}, false
	}
	for _, o := range cur.Options {
		if o.ID == id {
			return o, true
		}
	}
	return DialogueOption{}, false
}
