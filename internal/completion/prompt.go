package completion

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/content-signals/internal/taxonomy"
)

// Prompt limits for the taxonomy examples embedded in each request.
const (
	DefaultMaxRoots    = 20
	DefaultMaxChildren = 3
)

const classifyTemplate = `You are an expert content classifier using the IAB Content Taxonomy {{ version }}.

Analyze the article below and return only a valid JSON object with these fields:
{
  "iab_category": "top-level category label",
  "iab_code": "top-level category code",
  "iab_subcategory": "subcategory label",
  "iab_subcode": "subcategory code",
  "iab_secondary_category": "secondary top-level category label",
  "iab_secondary_code": "secondary top-level category code",
  "iab_secondary_subcategory": "secondary subcategory label",
  "iab_secondary_subcode": "secondary subcategory code",
  "tone": "overall tone of the writing",
  "intent": "primary user intent (informational, navigational, transactional, commercial)",
  "audience": "intended audience",
  "keywords": ["up to 8 keywords"],
  "buying_intent": "low, medium or high",
  "ad_suggestions": "suggested ad campaign types"
}

Taxonomy categories ({{ total }} entries, showing {{ roots | size }} top-level):
{% for root in roots %}• {{ root.code }} ({{ root.label }})
{% for child in root.children %}  - {{ child.code }} ({{ child.label }})
{% endfor %}{% endfor %}
CLASSIFICATION RULES:
1. Use codes exactly as listed in the taxonomy.
2. The subcategory must be a direct child of the chosen category.
3. The secondary category must differ from the primary category.
4. The secondary subcategory must be a direct child of the secondary category.
5. Use null for any field you cannot determine.
6. Classify by the main topic of the article, not by ads or navigation text.
7. Keywords are short phrases taken from the article.
8. Return the JSON object only, with no commentary.

URL: {{ url }}

ARTICLE:
{{ content }}
`

// PromptData is the input for one classification prompt.
type PromptData struct {
	URL     string
	Content string
}

// PromptBuilder renders the classification prompt. It is safe for
// concurrent use.
type PromptBuilder struct {
	tpl         *liquid.Template
	maxRoots    int
	maxChildren int

	mu       sync.Mutex
	examples map[string][]map[string]any // keyed by index version
}

// NewPromptBuilder parses the template once.
func NewPromptBuilder() (*PromptBuilder, error) {
	engine := liquid.NewEngine()
	tpl, err := engine.ParseString(classifyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &PromptBuilder{
		tpl:         tpl,
		maxRoots:    DefaultMaxRoots,
		maxChildren: DefaultMaxChildren,
		examples:    make(map[string][]map[string]any),
	}, nil
}

// Build renders the prompt for data with examples from idx.
func (b *PromptBuilder) Build(idx *taxonomy.Index, data PromptData) (string, error) {
	if idx == nil {
		return "", fmt.Errorf("prompt requires a taxonomy index")
	}
	bindings := map[string]interface{}{
		"version": idx.Version(),
		"total":   idx.Len(),
		"roots":   b.rootExamples(idx),
		"url":     data.URL,
		"content": data.Content,
	}
	out, err := b.tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return out, nil
}

func (b *PromptBuilder) rootExamples(idx *taxonomy.Index) []map[string]any {
	key := idx.Source() + "|" + idx.Version()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ex, ok := b.examples[key]; ok {
		return ex
	}

	roots := idx.Roots()
	if len(roots) > b.maxRoots {
		roots = roots[:b.maxRoots]
	}
	ex := make([]map[string]any, 0, len(roots))
	for _, r := range roots {
		children := idx.Children(r.Code)
		if len(children) > b.maxChildren {
			children = children[:b.maxChildren]
		}
		kids := make([]map[string]any, 0, len(children))
		for _, c := range children {
			kids = append(kids, map[string]any{"code": c.Code, "label": oneLine(c.Label)})
		}
		ex = append(ex, map[string]any{"code": r.Code, "label": oneLine(r.Label), "children": kids})
	}
	b.examples[key] = ex
	return ex
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
