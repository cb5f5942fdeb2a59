// Package generator defines the pluggable capability-to-artifact
// producer the Evolution Controller drives, per spec.md section 1's
// "Out of scope (external collaborators, not CORE): The code generator
// itself (treated as a pluggable capability->artifact producer)." The
// controller depends only on the Generator interface; this package
// supplies a Gemini-backed implementation (grounded in the teacher's
// google.golang.org/genai usage) and a deterministic stub for tests
// and offline runs.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"skillforge/internal/artifact"
)

// ErrUnknownCapability is returned when the generator itself
// recognizes it has no way to satisfy the requested capability, the
// Go equivalent of the typed ValueError the original's mock provider
// raises for an unrecognized capability description. The controller
// downgrades this to a GENERATE_FAILED audit entry, per spec.md
// section 7.
var ErrUnknownCapability = errors.New("generator: unknown capability")

// ErrGeneration wraps any other generation failure: a malformed model
// response, a transport/client error, or anything else that is not
// the generator cleanly declining an unrecognized capability. The
// controller treats this as an unexpected condition and emits ERROR,
// per spec.md section 7: "any other raised condition from the
// generator is treated as unexpected."
var ErrGeneration = errors.New("generator: failed to produce artifact")

// Generator turns a natural-language capability description into a
// candidate artifact package. Implementations MUST NOT write to disk
// or otherwise mutate pipeline state — the controller owns staging.
type Generator interface {
	Generate(ctx context.Context, capability, context string) (artifact.Package, error)
}

const systemPrompt = `You write small, sandboxed Python skills. Given a requested capability, emit ONLY a JSON object with keys:
"name" (lowercase snake_case identifier, 3-64 chars), "code" (python source defining verify() and action(**kwargs)),
"manifest" (object with name, version "1.0.0", description, inputs_schema, outputs_schema, permissions{filesystem:"none",network:false,subprocess:false}).
The code MUST NOT import anything beyond the standard library's safe data-handling modules, and MUST NOT touch the filesystem, network, or subprocess.
Return no prose, no markdown fences — raw JSON only.`

// GeminiGenerator calls the Gemini API through google.golang.org/genai
// to produce an artifact.Package from a capability description.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator builds a GeminiGenerator against apiKey. model
// defaults to "gemini-2.0-flash" when empty.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generator: GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("generator: create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate asks the model for one artifact matching capability and
// context, decoding its JSON response into an artifact.Package.
func (g *GeminiGenerator) Generate(ctx context.Context, capability, context_ string) (artifact.Package, error) {
	prompt := fmt.Sprintf("%s\n\nCapability requested: %s\nOrigin context: %s\n", systemPrompt, capability, context_)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return artifact.Package{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	text := extractText(result)
	if text == "" {
		return artifact.Package{}, fmt.Errorf("%w: empty model response", ErrGeneration)
	}
	return decodePackage(text)
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func decodePackage(text string) (artifact.Package, error) {
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSpace(trimmed)

	var raw struct {
		Name     string          `json:"name"`
		Code     string          `json:"code"`
		Manifest json.RawMessage `json:"manifest"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return artifact.Package{}, fmt.Errorf("%w: unparseable response: %v", ErrGeneration, err)
	}
	if raw.Name == "" || raw.Code == "" || len(raw.Manifest) == 0 {
		return artifact.Package{}, fmt.Errorf("%w: incomplete artifact in response", ErrGeneration)
	}
	return artifact.Package{
		Name:         raw.Name,
		Code:         raw.Code,
		ManifestJSON: raw.Manifest,
	}, nil
}

// StubGenerator is a deterministic, offline Generator used by tests
// and any deployment without a configured model provider. It echoes a
// fixed template parameterized by the requested capability so
// downstream gates have something concrete to exercise.
type StubGenerator struct {
	// Template, when set, is used verbatim (with "{{capability}}"
	// substituted) instead of the built-in trivial skill body.
	Template string
}

// Generate returns a minimal, policy-compliant artifact whose
// action() echoes its input and whose verify() always returns True.
func (s *StubGenerator) Generate(_ context.Context, capability, _ string) (artifact.Package, error) {
	name := slugify(capability)
	if name == "" {
		return artifact.Package{}, fmt.Errorf("%w: capability description yields no usable skill name", ErrUnknownCapability)
	}

	code := s.Template
	if code == "" {
		code = stubCodeTemplate
	}
	code = strings.ReplaceAll(code, "{{capability}}", capability)

	manifest := fmt.Sprintf(`{
  "name": %q,
  "version": "1.0.0",
  "description": %q,
  "inputs_schema": {"type": "object"},
  "outputs_schema": {"type": "object"},
  "permissions": {"filesystem": "none", "network": false, "subprocess": false}
}`, name, describeCapability(capability))

	return artifact.Package{
		Name:         name,
		Code:         code,
		ManifestJSON: []byte(manifest),
	}, nil
}

const stubCodeTemplate = `# generated for: {{capability}}
def verify():
    return True


def action(**kwargs):
    return dict(kwargs)
`

func slugify(capability string) string {
	lower := strings.ToLower(strings.TrimSpace(capability))
	if lower == "" {
		return ""
	}
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(sb.String(), "_")
	if name == "" {
		return ""
	}
	if len(name) > 64 {
		name = name[:64]
	}
	if name[0] < 'a' || name[0] > 'z' {
		name = "skill_" + name
		if len(name) > 64 {
			name = name[:64]
		}
	}
	if len(name) < 3 {
		name = name + strings.Repeat("x", 3-len(name))
	}
	return name
}

func describeCapability(capability string) string {
	desc := fmt.Sprintf("Automatically generated skill for capability: %s", capability)
	if len(desc) > 500 {
		desc = desc[:500]
	}
	if len(desc) < 10 {
		desc = desc + strings.Repeat(".", 10-len(desc))
	}
	return desc
}
