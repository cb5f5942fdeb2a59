// Command skill-harness is the entry point that executes inside the
// sandbox container described in spec.md section 4.3. It receives the
// artifact mount path as its single argument, refuses to run an
// artifact missing a verify or action symbol, and prints the sentinel
// lines the Sandbox Runner inspects from outside the container.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"skillforge/internal/backend"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) != 2 {
		fmt.Println("VERIFICATION_FAILED: usage: skill-harness <artifact-dir>")
		return 1
	}
	artifactDir := args[1]
	srcPath := filepath.Join(artifactDir, "skill.py")

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Println("VERIFICATION_FAILED: artifact source missing")
		return 1
	}
	if !backend.HasEntryPoints(string(raw)) {
		fmt.Println("VERIFICATION_FAILED: artifact lacks a verify or an action entry point")
		return 1
	}

	b := backend.NewPythonBackend()
	result, err := b.Verify(context.Background(), artifactDir)
	if err != nil {
		fmt.Printf("VERIFICATION_FAILED: %v\n", err)
		return 1
	}
	fmt.Print(result.Output)
	if result.Passed {
		return 0
	}
	return 1
}
