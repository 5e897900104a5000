// Package graph renders compiled workflow descriptions as Mermaid
// flowcharts for the CLI and the inspection API.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/furrow/pkg/graph"
)

// Overlay carries dynamic state to highlight on the rendered graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces Mermaid flowchart syntax from a graph
// description. Subgraphs become mermaid subgraph blocks with their node IDs
// qualified as parent/child, matching the engine's snapshot cursor format.
// Nodes that accept external entry (refinement loops) are tagged with the
// entry style; an overlay additionally tags visited and current nodes.
func GenerateMermaid(desc graph.Description, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	writeNodes(&sb, desc, "", 1)
	writeEdges(&sb, desc, "", 1)

	sb.WriteString("\n    %% Styles\n")
	sb.WriteString("    classDef entry fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
	for _, id := range desc.ExternalEntries {
		sb.WriteString(fmt.Sprintf("    class %s entry;\n", sanitizeID(id)))
	}

	if overlay != nil {
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safe := sanitizeID(id)
			if safe == "" || seen[safe] {
				continue
			}
			seen[safe] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", safe))
		}
		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func writeNodes(sb *strings.Builder, desc graph.Description, prefix string, depth int) {
	pad := strings.Repeat("    ", depth)

	for _, node := range desc.Nodes {
		qualified := qualify(prefix, node.ID)

		if node.Subgraph != nil {
			fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", pad, sanitizeID(qualified), node.ID)
			writeNodes(sb, *node.Subgraph, qualified, depth+1)
			writeEdges(sb, *node.Subgraph, qualified, depth+1)
			fmt.Fprintf(sb, "%send\n", pad)
			continue
		}

		opener, closer := "[", "]"
		if node.ID == desc.Entry && prefix == "" {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", pad, sanitizeID(qualified), opener, node.ID, closer)
	}
}

func writeEdges(sb *strings.Builder, desc graph.Description, prefix string, depth int) {
	pad := strings.Repeat("    ", depth)
	endEmitted := false

	for _, edge := range desc.Edges {
		from := sanitizeID(qualify(prefix, edge.From))
		to := sanitizeID(qualify(prefix, edge.To))

		if edge.To == graph.End && !endEmitted {
			fmt.Fprintf(sb, "%s%s((\"end\"))\n", pad, to)
			endEmitted = true
		}

		arrow := "-->"
		if edge.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(edge.Label, "\"", "'"))
		}
		fmt.Fprintf(sb, "%s%s %s %s\n", pad, from, arrow, to)
	}
}

func qualify(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + "/" + id
}

func sanitizeID(id string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return replacer.Replace(id)
}
