package llm

import "strings"

// ChunkPlaceholder marks where chunk text goes in the transform template.
const ChunkPlaceholder = "{TEXT_CHUNK}"

// RenderPrompt substitutes the first placeholder in template with text. A
// template without the placeholder gets the text appended after a blank line.
func RenderPrompt(template, text string) string {
	if !strings.Contains(template, ChunkPlaceholder) {
		if strings.TrimSpace(template) == "" {
			return text
		}
		return strings.TrimRight(template, "\n") + "\n\n" + text
	}
	return strings.Replace(template, ChunkPlaceholder, text, 1)
}
