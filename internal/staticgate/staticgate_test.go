package staticgate

import (
	"strings"
	"testing"
)

func TestGateRejectsImportOS(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("import os\n")
	if result.Passed {
		t.Fatalf("expected rejection, got pass")
	}
	found := false
	for _, v := range result.Violations {
		if strings.Contains(v, "os") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a violation mentioning os, got %v", result.Violations)
	}
}

func TestGateAcceptsSafeSkill(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	code := `import json
import re
from typing import Any


def action(payload: str) -> Any:
    data = json.loads(payload)
    return re.sub(r"\s+", " ", data.get("text", ""))


def verify() -> bool:
    return action('{"text": "a  b"}') == "a b"
`
	result := g.Check(code)
	if !result.Passed {
		t.Fatalf("expected pass, got violations: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", result.Violations)
	}
}

func TestGateRejectsSubprocessImport(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("import subprocess\nsubprocess.run(['ls'])\n")
	if result.Passed {
		t.Fatalf("expected rejection for subprocess import")
	}
}

func TestGateRejectsForbiddenCall(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("def action():\n    return eval('1+1')\n")
	if result.Passed {
		t.Fatalf("expected rejection for eval call")
	}
}

func TestGateRejectsChainedAttributeEscape(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("def action():\n    return ().__class__.__bases__[0].__subclasses__()\n")
	if result.Passed {
		t.Fatalf("expected rejection for chained attribute escape")
	}
}

func TestGateAliasedImportStillCaught(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("import os as system_ops\n")
	if result.Passed {
		t.Fatalf("expected rejection for aliased disallowed import")
	}
}

func TestGateSyntaxErrorShortCircuits(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check("def action(:\n")
	if result.Passed {
		t.Fatalf("expected rejection for syntax error")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("expected exactly one violation on syntax error, got %v", result.Violations)
	}
	if !strings.HasPrefix(result.Violations[0], "Syntax error:") {
		t.Fatalf("expected violation prefixed 'Syntax error:', got %q", result.Violations[0])
	}
}

func TestGateTraversalPattern(t *testing.T) {
	g := New(DefaultPolicy())
	defer g.Close()

	result := g.Check(`path = "../../etc/passwd"` + "\n")
	if result.Passed {
		t.Fatalf("expected rejection for traversal pattern")
	}
}
