package depgraph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

const dgmlNamespace = "http://schemas.microsoft.com/vs/2009/dgml"

type dgmlGraph struct {
	XMLName xml.Name   `xml:"DirectedGraph"`
	Xmlns   string     `xml:"xmlns,attr"`
	Nodes   []dgmlNode `xml:"Nodes>Node"`
	Links   []dgmlLink `xml:"Links>Link"`
}

type dgmlNode struct {
	ID    string `xml:"Id,attr"`
	Label string `xml:"Label,attr"`
}

type dgmlLink struct {
	Source string `xml:"Source,attr"`
	Target string `xml:"Target,attr"`
	Reason string `xml:"Reason,attr"`
}

// WriteDGML writes the marked nodes and recorded edges of a as a Directed
// Graph Markup Language document. Roots link from a synthetic "Roots" node.
func WriteDGML[F any](w io.Writer, a *Analyzer[F]) error {
	ids := make(map[Node[F]]string, len(a.marked))
	g := dgmlGraph{Xmlns: dgmlNamespace}
	g.Nodes = append(g.Nodes, dgmlNode{ID: "0", Label: "Roots"})
	for i, n := range a.marked {
		id := strconv.Itoa(i + 1)
		ids[n] = id
		g.Nodes = append(g.Nodes, dgmlNode{ID: id, Label: n.Name()})
	}
	for _, e := range a.edges {
		source := "0"
		if e.From != nil {
			source = ids[e.From]
		}
		g.Links = append(g.Links, dgmlLink{Source: source, Target: ids[e.To], Reason: e.Reason})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write DGML header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("failed to encode DGML: %w", err)
	}
	return enc.Flush()
}
