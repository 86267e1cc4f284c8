package dom

import (
	"sync/atomic"

	"golang.org/x/net/html"
)

// MutationKind classifies a mutation record.
type MutationKind int

const (
	ChildList MutationKind = iota
	CharacterData
	Attributes
)

func (k MutationKind) String() string {
	switch k {
	case ChildList:
		return "childList"
	case CharacterData:
		return "characterData"
	case Attributes:
		return "attributes"
	default:
		return "unknown"
	}
}

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Kind    MutationKind
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
	// AttributeName is set for Attributes records.
	AttributeName string
	// Turn is the document turn that produced the record, 0 outside Do.
	Turn uint64
}

// ObserveOptions selects the record kinds an observer receives.
type ObserveOptions struct {
	ChildList     bool
	CharacterData bool
	Attributes    bool
}

func (o ObserveOptions) wants(k MutationKind) bool {
	switch k {
	case ChildList:
		return o.ChildList
	case CharacterData:
		return o.CharacterData
	case Attributes:
		return o.Attributes
	}
	return false
}

// Observer receives batches of mutation records for a whole document.
type Observer struct {
	doc          *Document
	opts         ObserveOptions
	fn           func([]MutationRecord)
	disconnected atomic.Bool
}

// Observe registers fn for document-wide mutations. fn runs inside the turn
// that produced the records; it may read and mutate the tree but must not
// call Do or Dispatch.
func (d *Document) Observe(opts ObserveOptions, fn func([]MutationRecord)) *Observer {
	o := &Observer{doc: d, opts: opts, fn: fn}
	d.obsMu.Lock()
	d.observers = append(d.observers, o)
	d.obsMu.Unlock()
	return o
}

// Disconnect stops delivery. Records already queued are dropped.
func (o *Observer) Disconnect() {
	if o.disconnected.Swap(true) {
		return
	}
	d := o.doc
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	for i, other := range d.observers {
		if other == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

func (d *Document) record(rec MutationRecord) {
	if d.inTurn {
		rec.Turn = d.turn.Load()
	}
	d.pending = append(d.pending, rec)
	if !d.inTurn && !d.flushing {
		d.flush()
	}
}

// flush delivers queued records. Records produced by observers while
// flushing are delivered in the same loop.
func (d *Document) flush() {
	if d.flushing {
		return
	}
	d.flushing = true
	defer func() { d.flushing = false }()

	for len(d.pending) > 0 {
		batch := d.pending
		d.pending = nil

		d.obsMu.Lock()
		observers := make([]*Observer, len(d.observers))
		copy(observers, d.observers)
		d.obsMu.Unlock()

		for _, o := range observers {
			if o.disconnected.Load() {
				continue
			}
			var selected []MutationRecord
			for _, rec := range batch {
				if o.opts.wants(rec.Kind) {
					selected = append(selected, rec)
				}
			}
			if len(selected) > 0 {
				o.fn(selected)
			}
		}
	}
}

// AppendChild adds child as the last child of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref, or at the end when ref is nil.
// A child that already has a parent is moved.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if child.Parent != nil {
		d.RemoveChild(child.Parent, child)
	}
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
}

// RemoveChild detaches child and drops the listeners of its subtree.
func (d *Document) RemoveChild(parent, child *html.Node) {
	parent.RemoveChild(child)
	d.dropListeners(child)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Removed: []*html.Node{child}})
}

// ReplaceChild swaps old for the given nodes as a single mutation.
func (d *Document) ReplaceChild(parent, old *html.Node, nodes ...*html.Node) {
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
	d.dropListeners(old)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Added: nodes, Removed: []*html.Node{old}})
}

// Unwrap moves the children of n into its parent in place of n and removes
// n. It returns the moved children.
func (d *Document) Unwrap(n *html.Node) []*html.Node {
	parent := n.Parent
	if parent == nil {
		return nil
	}
	var moved []*html.Node
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		moved = append(moved, c)
	}
	parent.RemoveChild(n)
	d.dropListeners(n)
	d.record(MutationRecord{Kind: ChildList, Target: parent, Added: moved, Removed: []*html.Node{n}})
	return moved
}

// SetText replaces the data of a text or comment node.
func (d *Document) SetText(n *html.Node, text string) {
	if n.Data == text {
		return
	}
	n.Data = text
	d.record(MutationRecord{Kind: CharacterData, Target: n})
}

// SetAttr sets an attribute, recording a change only when the value differs.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return
			}
			n.Attr[i].Val = val
			d.record(MutationRecord{Kind: Attributes, Target: n, AttributeName: key})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.record(MutationRecord{Kind: Attributes, Target: n, AttributeName: key})
}

// RemoveAttr deletes an attribute if present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.record(MutationRecord{Kind: Attributes, Target: n, AttributeName: key})
			return
		}
	}
}
