package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt sets the assistant persona.
const SystemPrompt = `You are a representative that is very helpful when it comes to talking about SAP Business ByDesign, Only ever answer
      truthfully and be as helpful as you can!`

// BuildContext joins the retrieved chunks, each trimmed and followed by "---\n".
func BuildContext(matches []Match) string {
	var b strings.Builder
	for _, m := range matches {
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("---\n")
	}
	return b.String()
}

// BuildMessages returns the system persona and the user message carrying
// the context block and the question.
func BuildMessages(system, contextText, query string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: fmt.Sprintf(`Context sections: "%s" Question: "%s" Answer as simple text:`, contextText, query)},
	}
}
