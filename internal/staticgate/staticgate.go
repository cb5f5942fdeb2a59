// Package staticgate implements the deny-by-default static security
// gate described in spec.md section 4.1: a textual scan, a structural
// parse, and a tree walk over imports/calls/attribute-access, each
// phase accumulating violations except a parse failure which
// short-circuits. Grounded in the teacher's
// internal/world/ast_treesitter.go tree-sitter walk (codenerd), using
// the Python grammar since the pipeline's artifacts are Python skill
// sources.
package staticgate

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Result is the gate's verdict for one source string.
type Result struct {
	Passed     bool
	Violations []string
}

// Gate evaluates source code against a Policy. A Gate owns a
// tree-sitter parser instance and is not safe for concurrent use by
// multiple goroutines without external synchronization, mirroring the
// teacher's TreeSitterParser.
type Gate struct {
	policy Policy
	parser *sitter.Parser
}

// New creates a Gate with the given policy. Use DefaultPolicy() for
// the spec's minimum table set.
func New(policy Policy) *Gate {
	return &Gate{policy: policy, parser: sitter.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (g *Gate) Close() {
	g.parser.Close()
}

// Check runs all three phases against code and returns the combined
// verdict.
func (g *Gate) Check(code string) Result {
	var violations []string

	// Phase 1: textual scan.
	for _, pat := range g.policy.TextPatterns {
		if pat.Re.MatchString(code) {
			violations = append(violations, fmt.Sprintf("forbidden pattern matched: %s", pat.Name))
		}
	}

	// Phase 2: structural parse.
	g.parser.SetLanguage(python.GetLanguage())
	tree, err := g.parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil {
		return Result{Passed: false, Violations: []string{fmt.Sprintf("Syntax error: %v", err)}}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return Result{Passed: false, Violations: []string{"Syntax error: parse tree contains error nodes"}}
	}

	// Phase 3: tree walk.
	violations = append(violations, g.walk(root, code)...)

	return Result{Passed: len(violations) == 0, Violations: violations}
}

func (g *Gate) walk(node *sitter.Node, code string) []string {
	var violations []string
	text := func(n *sitter.Node) string { return n.Content([]byte(code)) }

	var recurse func(n *sitter.Node)
	recurse = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "dotted_name" || child.Type() == "identifier" {
					violations = append(violations, g.checkModule(topLevel(text(child)))...)
				} else if child.Type() == "aliased_import" {
					nameNode := child.ChildByFieldName("name")
					if nameNode != nil {
						violations = append(violations, g.checkModule(topLevel(text(nameNode)))...)
					}
				}
			}
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			if moduleNode != nil {
				violations = append(violations, g.checkModule(topLevel(text(moduleNode)))...)
			}
		case "call":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				name := callTargetName(fn, text)
				if name != "" && g.policy.ForbiddenCalls[name] {
					violations = append(violations, fmt.Sprintf("forbidden call: %s", name))
				}
			}
		case "attribute":
			attrNode := n.ChildByFieldName("attribute")
			if attrNode != nil {
				name := text(attrNode)
				if g.policy.ForbiddenAttributes[name] {
					violations = append(violations, fmt.Sprintf("forbidden attribute access: %s", name))
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			recurse(n.Child(i))
		}
	}
	recurse(node)
	return violations
}

func (g *Gate) checkModule(name string) []string {
	if name == "" {
		return nil
	}
	if !g.policy.AllowedModules[name] {
		return []string{fmt.Sprintf("import of disallowed module: %s", name)}
	}
	return nil
}

// topLevel returns the leftmost dotted component of a module path, so
// "os.path" and "os" both resolve to "os" and aliasing never evades
// the allowlist.
func topLevel(dotted string) string {
	dotted = strings.TrimSpace(dotted)
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// callTargetName returns the bare name for a direct call (`eval(...)`)
// or the terminal attribute name for a dotted call
// (`os.system(...)` -> "system"), so chained attribute escapes like
// `().__class__.__bases__[0].__subclasses__()` are still caught by the
// attribute-access check even though the call site name here
// ("__subclasses__") also matches if listed as forbidden.
func callTargetName(fn *sitter.Node, text func(*sitter.Node) string) string {
	switch fn.Type() {
	case "identifier":
		return text(fn)
	case "attribute":
		attrNode := fn.ChildByFieldName("attribute")
		if attrNode != nil {
			return text(attrNode)
		}
	}
	return ""
}
