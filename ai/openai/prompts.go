package openai

import (
	"fmt"
	"strings"

	"github.com/veridian/atomforge/core"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "atom_type": {
        "type": "string",
        "enum": ["fault", "procedure", "concept", "pattern", "specification"]
      },
      "vendor": {"type": "string"},
      "product": {"type": "string"},
      "title": {"type": "string"},
      "summary": {"type": "string", "minLength": 50, "maxLength": 200},
      "content": {"type": "string", "minLength": 300, "maxLength": 5000},
      "keywords": {
        "type": "array",
        "items": {"type": "string", "pattern": "^[a-z0-9]+([ -][a-z0-9]+)*$"},
        "minItems": 3,
        "maxItems": 15
      },
      "difficulty": {
        "type": "string",
        "enum": ["beginner", "intermediate", "advanced"]
      }
    },
    "required": ["atom_type", "vendor", "product", "title", "summary", "content", "keywords", "difficulty"],
    "additionalProperties": false
  }
}`

const extractionPromptTemplate = `Extract atomic units of technical knowledge from the given document text and return them as JSON.

Output ONLY a valid JSON array which complies with the schema given below. Do not include any preamble,
explanation, greeting, or acknowledgment. Start your response directly with the opening bracket [ and end
with the closing bracket ]. Your output must exactly follow this schema:

%s

Rules:
- Each record must be a self-contained unit of knowledge: a reader should need no other context to use it.
- atom_type must be exactly one of: %s.
- vendor is the equipment manufacturer; product is the product family the knowledge applies to.
- summary is 1-2 sentences; content is the full knowledge text, at least 300 characters.
- keywords are lowercase search terms. Include 3 to 15 of them.
- Include only knowledge stated in the text. Do not invent values, part numbers, or procedures.
- If the text contains no extractable knowledge, return [].
- The JSON must parse without errors; no trailing commas, no extra keys, no text outside the array.

Example:
Input: "The X200 controller reports error E14 when the supply voltage drops below 19.2 V. Check the PSU fuse and the 24 V rail before replacing the board."
Output:
[
  {
    "atom_type": "fault",
    "vendor": "acme",
    "product": "x200",
    "title": "E14 undervoltage error on X200 controller",
    "summary": "Error E14 on the X200 controller indicates supply voltage below 19.2 V; check the PSU fuse and 24 V rail first.",
    "content": "The X200 controller raises error E14 when its supply voltage drops below 19.2 V. ...",
    "keywords": ["e14", "undervoltage", "x200", "power supply"],
    "difficulty": "intermediate"
  }
]`

// buildSystemPrompt creates the system prompt with atom types embedded.
func buildSystemPrompt() string {
	names := make([]string, len(core.AtomTypes))
	for i, t := range core.AtomTypes {
		names[i] = string(t)
	}
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(names, ", "))
}
