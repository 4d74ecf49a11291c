// ABOUTME: Tool registry and ordered keyword-intent rules
// ABOUTME: First matching rule wins; ties broken by declaration order

package tools

import (
	"sort"
	"strings"
)

// Rule maps keyword patterns to a tool. Rules are evaluated in declaration
// order against the lowercased message text; the first rule with a matching
// keyword wins.
type Rule struct {
	Tool     string
	Keywords []string
	// Extract derives the tool input from the full message and the matched
	// keyword. Nil means the whole message is the input.
	Extract func(text, keyword string) string
}

// Registry holds the named tools and the intent rules that select them.
type Registry struct {
	tools map[string]Tool
	rules []Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, keyed by its name. Later registrations replace
// earlier ones.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// AddRule appends an intent rule. Order of calls is match priority.
func (r *Registry) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Match scans the message against the ordered rules. Returns the selected
// tool name and extracted input, or ok=false when no rule matches.
func (r *Registry) Match(text string) (name, input string, ok bool) {
	lowered := strings.ToLower(text)
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				if rule.Extract != nil {
					return rule.Tool, rule.Extract(text, kw), true
				}
				return rule.Tool, text, true
			}
		}
	}
	return "", "", false
}

// afterKeyword returns the text following the first occurrence of the
// keyword, trimmed. Falls back to the full text when nothing follows.
func afterKeyword(text, keyword string) string {
	lowered := strings.ToLower(text)
	idx := strings.Index(lowered, keyword)
	if idx < 0 {
		return strings.TrimSpace(text)
	}
	rest := strings.TrimSpace(text[idx+len(keyword):])
	rest = strings.TrimPrefix(rest, "que ")
	if rest == "" {
		return strings.TrimSpace(text)
	}
	return rest
}

// NewDefaultRegistry builds the standard tool set with the default intent
// rules, in priority order: time, search, calculation, memory-write,
// courtesy.
func NewDefaultRegistry(searcher Searcher) *Registry {
	r := NewRegistry()

	r.Register(NewClockTool())
	r.Register(NewSearchTool(searcher))
	r.Register(NewCalcTool())
	r.Register(NewNotesTool())
	r.Register(NewCourtesyTool())

	r.AddRule(Rule{Tool: "clock", Keywords: []string{"qué hora", "que hora", "la hora", "what time"}})
	r.AddRule(Rule{Tool: "search", Keywords: []string{"busca ", "buscar ", "search "}, Extract: afterKeyword})
	r.AddRule(Rule{Tool: "calc", Keywords: []string{"calcula", "cuánto es", "cuanto es", "calculate"}, Extract: extractExpression})
	r.AddRule(Rule{Tool: "notes", Keywords: []string{"recuerda ", "remember "}, Extract: afterKeyword})
	r.AddRule(Rule{Tool: "courtesy", Keywords: []string{"gracias", "thank you", "thanks", "de nada"}})

	return r
}
