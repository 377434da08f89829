package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MemoryExtraction is the structured outcome of asking an LLM whether a
// user/assistant exchange contains durable facts worth remembering. Field
// names mirror the upstream contract.
type MemoryExtraction struct {
	HasMemory bool            `json:"hayMemoria"`
	Memories  []ExtractedFact `json:"memorias"`
}

// ExtractedFact is one candidate memory fact.
type ExtractedFact struct {
	Category  string  `json:"categoria"`
	Text      string  `json:"informacion"`
	Relevance float64 `json:"relevancia"`
}

// ExtractJSON pulls the first balanced JSON object out of an LLM reply,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in reply")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in reply")
}

// ParseMemoryExtraction decodes an LLM reply into a MemoryExtraction.
func ParseMemoryExtraction(reply string) (*MemoryExtraction, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var out MemoryExtraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode memory extraction: %w", err)
	}
	return &out, nil
}

// ExplanationVerdict is the LLM's judgement of a voice-transcribed task
// explanation against the task's intent.
type ExplanationVerdict struct {
	Valid  bool   `json:"valida"`
	Reason string `json:"motivo"`
}

// ParseExplanationVerdict decodes an LLM reply into a verdict.
func ParseExplanationVerdict(reply string) (*ExplanationVerdict, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var out ExplanationVerdict
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode explanation verdict: %w", err)
	}
	return &out, nil
}

// MemoryExtractionPrompt renders the extraction prompt for one exchange.
func MemoryExtractionPrompt(userMessage, aiMessage string) string {
	var b strings.Builder
	b.WriteString("Analiza el siguiente intercambio y decide si contiene informacion duradera sobre el usuario.\n")
	b.WriteString("Responde SOLO con JSON: {\"hayMemoria\": bool, \"memorias\": [{\"categoria\": string, \"informacion\": string, \"relevancia\": number}]}\n")
	b.WriteString("Categorias validas: preferences, personal, work, skills, goals, general, conversations.\n\n")
	b.WriteString("Usuario: " + userMessage + "\n")
	b.WriteString("Asistente: " + aiMessage + "\n")
	return b.String()
}

// ExplanationValidationPrompt renders the prompt that checks whether an
// explanation actually addresses the task.
func ExplanationValidationPrompt(taskName, explanation string) string {
	var b strings.Builder
	b.WriteString("Tarea: " + taskName + "\n")
	b.WriteString("Explicacion transcrita por voz: " + explanation + "\n\n")
	b.WriteString("¿La explicacion describe trabajo realizado sobre esa tarea? ")
	b.WriteString("Responde SOLO con JSON: {\"valida\": bool, \"motivo\": string}\n")
	return b.String()
}
