package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dbsmedya/waitforgraph/internal/lock"
)

// dotLabel is printed as the graph label of every rendered document.
const dotLabel = "WaitForGraph - Generated By waitforgraph"

// DocEdge is one rendered edge. Note is the human-readable explanation
// printed in the trailing comment block; empty notes are skipped.
type DocEdge struct {
	Waiter lock.SessionID
	Holder lock.SessionID
	Note   string
}

// Document is a graph ready to be written as DOT.
type Document struct {
	Vertices []lock.SessionID
	Edges    []DocEdge
}

// Document returns the whole graph with edge explanations.
func (g *WFGraph) Document() Document {
	doc := Document{Vertices: g.Vertices()}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, DocEdge{
			Waiter: e.Waiter,
			Holder: e.Holder,
			Note:   g.Describe(e),
		})
	}
	return doc
}

// Restrict returns the part of the graph covered by sub, keeping the edge
// explanations of every edge whose waiter is in sub.
func (g *WFGraph) Restrict(sub *Subgraph) Document {
	doc := Document{Vertices: sub.Vertices()}
	for _, e := range g.Edges() {
		if !sub.Contains(e.Waiter) {
			continue
		}
		doc.Edges = append(doc.Edges, DocEdge{
			Waiter: e.Waiter,
			Holder: e.Holder,
			Note:   g.Describe(e),
		})
	}
	return doc
}

// Document returns the subgraph without explanations, which plain
// adjacency input does not carry.
func (s *Subgraph) Document() Document {
	doc := Document{Vertices: s.Vertices()}
	for _, e := range s.Edges() {
		doc.Edges = append(doc.Edges, DocEdge{Waiter: e[0], Holder: e[1]})
	}
	return doc
}

// WriteDOT writes doc in DOT syntax followed by a comment block holding one
// explanation line per edge.
func WriteDOT(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "strict digraph G {")
	fmt.Fprintf(bw, "label=%q;\n", dotLabel)
	for _, v := range doc.Vertices {
		fmt.Fprintf(bw, "%d;\n", v)
	}
	for _, e := range doc.Edges {
		fmt.Fprintf(bw, "%d -> %d\n", e.Waiter, e.Holder)
	}
	fmt.Fprintln(bw, "}")

	fmt.Fprintln(bw, "/*")
	for _, e := range doc.Edges {
		if e.Note != "" {
			fmt.Fprintln(bw, e.Note)
		}
	}
	fmt.Fprintln(bw, "*/")

	return bw.Flush()
}
