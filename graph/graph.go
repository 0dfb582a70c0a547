package graph

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/kr/text"
	"github.com/pkg/errors"
)

type Field struct {
	Name, Value string
}

type Child struct {
	Name string
	Node *Node
}

// Node is the description of a single plan step, used for diagnostics.
type Node struct {
	Name     string
	Fields   []Field
	Children []Child
}

func NewNode(name string) *Node {
	return &Node{
		Name: name,
	}
}

func (n *Node) AddField(name, value string) {
	n.Fields = append(n.Fields, Field{
		Name:  name,
		Value: value,
	})
}

func (n *Node) AddChild(name string, node *Node) {
	n.Children = append(n.Children, Child{
		Name: name,
		Node: node,
	})
}

type Visualizer interface {
	Visualize() *Node
}

// Describe renders the node tree as indented text, one plan step per line.
func Describe(node *Node) string {
	var sb strings.Builder
	describe(&sb, node)
	return sb.String()
}

func describe(sb *strings.Builder, node *Node) {
	sb.WriteString(node.Name)
	if len(node.Fields) > 0 {
		fields := make([]string, len(node.Fields))
		for i, field := range node.Fields {
			fields[i] = fmt.Sprintf("%s=%s", field.Name, field.Value)
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(fields, ", "))
		sb.WriteString(")")
	}
	sb.WriteString("\n")
	for _, child := range node.Children {
		var childSB strings.Builder
		childSB.WriteString(child.Name)
		childSB.WriteString(": ")
		describe(&childSB, child.Node)
		sb.WriteString(text.Indent(childSB.String(), "  "))
	}
}

// Show builds a graphviz graph of the node tree.
func Show(node *Node) (*gographviz.Graph, error) {
	graph := gographviz.NewGraph()
	graph.Directed = true
	if err := graph.AddAttr("", "rankdir", "LR"); err != nil {
		return nil, errors.Wrap(err, "couldn't set graph direction")
	}
	builder := &graphBuilder{
		graph:        graph,
		nameCounters: make(map[string]int),
	}

	if _, err := getGraphNode(builder, node); err != nil {
		return nil, err
	}

	return graph, nil
}

type graphBuilder struct {
	graph        *gographviz.Graph
	nameCounters map[string]int
}

func (gb *graphBuilder) getID(name string) string {
	count := gb.nameCounters[name]
	gb.nameCounters[name]++
	return fmt.Sprintf("%s_%d", strings.Replace(name, " ", "_", -1), count)
}

func getGraphNode(gb *graphBuilder, node *Node) (string, error) {
	fields := make([]string, len(node.Fields))
	for i, field := range node.Fields {
		fields[i] = fmt.Sprintf("<%s> %s: %s", field.Name, field.Name, escape(field.Value))
	}
	childPorts := make([]string, len(node.Children))
	for i, child := range node.Children {
		childPorts[i] = fmt.Sprintf("<%s> %s", child.Name, child.Name)
	}

	var labelParts []string
	labelParts = append(labelParts, fmt.Sprintf("<f0> %s", node.Name))

	if len(fields) > 0 {
		labelParts = append(labelParts, strings.Join(fields, "|"))
	}
	if len(childPorts) > 0 {
		labelParts = append(labelParts, strings.Join(childPorts, "|"))
	}

	label := fmt.Sprintf(
		"\"{{%s}}\"",
		strings.Join(labelParts, "}|{"),
	)

	id := gb.getID(node.Name)
	err := gb.graph.AddNode("", id, map[string]string{
		"shape": "record",
		"label": label,
	})
	if err != nil {
		return "", errors.Wrapf(err, "couldn't add node %s", id)
	}

	for _, child := range node.Children {
		childGraphNode, err := getGraphNode(gb, child.Node)
		if err != nil {
			return "", err
		}
		if err := gb.graph.AddPortEdge(id, child.Name, childGraphNode, "", true, map[string]string{}); err != nil {
			return "", errors.Wrapf(err, "couldn't add edge %s -> %s", id, childGraphNode)
		}
	}
	return id, nil
}

var labelEscaper = strings.NewReplacer(
	`"`, `\"`,
	"{", `\{`,
	"}", `\}`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

func escape(s string) string {
	return labelEscaper.Replace(s)
}
