// Package workflow parses workflow snapshots and turns their trigger node
// into queue jobs.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidDefinition = errors.New("workflow: invalid definition")
	ErrNoTrigger         = errors.New("workflow: no trigger node")
)

// TriggerType is the node type that seeds a run.
const TriggerType = "trigger"

// Node is one step of a workflow.
type Node struct {
	Name       string
	Type       string
	Parameters json.RawMessage
}

// IsTrigger reports whether the node type is "trigger", ignoring case.
func (n *Node) IsTrigger() bool {
	return strings.EqualFold(n.Type, TriggerType)
}

// Definition is a parsed workflow snapshot.
type Definition struct {
	ID          string
	Name        string
	Nodes       []*Node
	NodeByName  map[string]*Node
	Connections map[string][]string // source node -> target nodes
}

// Parse reads a workflow document:
//
//	{"id": ..., "name": ..., "nodes": [{"name", "type", "parameters"}],
//	 "connections": [{"main": [[{"sourceNode", "targetNode"}]]}]}
//
// Missing nodes or connections yield an empty definition. Nodes without a
// name are rejected. A repeated name replaces the earlier node in place.
func Parse(data []byte) (*Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidDefinition)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidDefinition)
	}

	def := &Definition{
		ID:          root.Get("id").String(),
		Name:        root.Get("name").String(),
		NodeByName:  make(map[string]*Node),
		Connections: make(map[string][]string),
	}

	var parseErr error
	root.Get("nodes").ForEach(func(i, n gjson.Result) bool {
		name := n.Get("name").String()
		if name == "" {
			parseErr = fmt.Errorf("%w: node %d has no name", ErrInvalidDefinition, i.Int())
			return false
		}

		node := &Node{Name: name, Type: n.Get("type").String()}
		if p := n.Get("parameters"); p.Exists() {
			node.Parameters = json.RawMessage(p.Raw)
		}
		if prev, dup := def.NodeByName[name]; dup {
			for j, existing := range def.Nodes {
				if existing == prev {
					def.Nodes[j] = node
					break
				}
			}
		} else {
			def.Nodes = append(def.Nodes, node)
		}
		def.NodeByName[name] = node
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	root.Get("connections").ForEach(func(_, c gjson.Result) bool {
		c.Get("main").ForEach(func(_, group gjson.Result) bool {
			group.ForEach(func(_, edge gjson.Result) bool {
				src := edge.Get("sourceNode").String()
				tgt := edge.Get("targetNode").String()
				if src != "" && tgt != "" {
					def.Connections[src] = append(def.Connections[src], tgt)
				}
				return true
			})
			return true
		})
		return true
	})

	return def, nil
}

// FindTrigger returns the first trigger node in document order.
func (d *Definition) FindTrigger() (*Node, error) {
	for _, n := range d.Nodes {
		if n.IsTrigger() {
			return n, nil
		}
	}
	return nil, ErrNoTrigger
}

// Next returns the nodes wired after name.
func (d *Definition) Next(name string) []*Node {
	var out []*Node
	for _, tgt := range d.Connections[name] {
		if n, ok := d.NodeByName[tgt]; ok {
			out = append(out, n)
		}
	}
	return out
}
