package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

// NoEntitiesContext is the context text for an empty subgraph.
const NoEntitiesContext = "No relevant entities found in knowledge graph."

// FormatContext renders a subgraph as the text context given to the analyst
// model.
func FormatContext(g *common.Graph) string {
	if g == nil || len(g.Entities) == 0 {
		return NoEntitiesContext
	}

	var b strings.Builder
	b.WriteString("**Entities:**\n")
	for _, n := range g.Entities {
		fmt.Fprintf(&b, "- %s (%s)\n", n.ID, n.Type)
	}

	b.WriteString("\n**Relationships:**\n")
	if len(g.Relationships) == 0 {
		b.WriteString("- No relationships found\n")
		return b.String()
	}
	for _, e := range g.Relationships {
		fmt.Fprintf(&b, "- %s --[%s, confidence: %s]--> %s\n",
			e.Source, e.Relation, strconv.FormatFloat(e.Confidence, 'f', -1, 64), e.Target)
	}
	return b.String()
}
