// Package backend implements the ArtifactBackend abstraction described
// in spec.md section 9: the pipeline never calls into artifact code
// in-process. PythonBackend loads an artifact directory and exposes
// Action and Verify, and for an interpreted-language artifact (the only kind
// this pipeline supports) it does so by shelling out to an interpreter
// subprocess with the artifact file as input, matching the sandbox's
// process-isolation model and the recommended implementation for the
// eval gate's per-case timeout in spec.md section 9.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Sentinels printed by the embedded harness wrapper. The runner's
// decision rule in spec.md section 4.3 requires both a clean exit code
// and the presence of this exact line in combined output.
const (
	SentinelSuccess    = "VERIFICATION_SUCCESS"
	SentinelFailPrefix = "VERIFICATION_FAILED:"
)

var (
	// ErrArtifactMissing indicates the source file was not found in the
	// mounted artifact directory.
	ErrArtifactMissing = errors.New("backend: artifact source missing")
	// ErrEntryPointMissing indicates the artifact lacks verify, action,
	// or both.
	ErrEntryPointMissing = errors.New("backend: required entry point missing")
)

// VerifyResult is the outcome of invoking an artifact's verify entry
// point.
type VerifyResult struct {
	Passed   bool
	ExitCode int
	Output   string
}

// ActionResult is the outcome of invoking an artifact's action entry
// point with structured input.
type ActionResult struct {
	Value    interface{}
	ErrorMsg string
	Duration time.Duration
	TimedOut bool
}

// PythonBackend shells out to a python3 interpreter. It is the only
// backend this pipeline ships, since every accepted artifact is Python
// source (skill.py). There is no separate backend interface: the eval
// gate, the loader, and the skill harness hold a *PythonBackend
// directly.
type PythonBackend struct {
	// Interpreter is the python executable to invoke. Defaults to
	// "python3" when empty.
	Interpreter string
}

// NewPythonBackend returns a backend using the system python3.
func NewPythonBackend() *PythonBackend {
	return &PythonBackend{Interpreter: "python3"}
}

func (b *PythonBackend) interpreter() string {
	if b.Interpreter == "" {
		return "python3"
	}
	return b.Interpreter
}

func sourcePath(artifactDir string) (string, error) {
	p := filepath.Join(artifactDir, "skill.py")
	if _, err := os.Stat(p); err != nil {
		return "", ErrArtifactMissing
	}
	return p, nil
}

// Verify runs the artifact's verify() entry point to completion or
// until ctx is cancelled, catching every exception class the wrapper
// script can observe including SystemExit and KeyboardInterrupt.
// Passed is true only when the process exits 0 AND the combined
// output contains the literal success sentinel.
func (b *PythonBackend) Verify(ctx context.Context, artifactDir string) (VerifyResult, error) {
	src, err := sourcePath(artifactDir)
	if err != nil {
		return VerifyResult{}, err
	}

	cmd := exec.CommandContext(ctx, b.interpreter(), "-c", wrapperScript, src, "verify")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return VerifyResult{}, fmt.Errorf("backend: launch interpreter: %w", runErr)
		}
	}

	output := out.String()
	passed := exitCode == 0 && bytes.Contains(out.Bytes(), []byte(SentinelSuccess))
	return VerifyResult{Passed: passed, ExitCode: exitCode, Output: output}, nil
}

// Action runs the artifact's action() entry point with the given
// named arguments, interrupting the invocation if ctx is cancelled
// before it returns (e.g. by a per-case timeout in the eval gate).
func (b *PythonBackend) Action(ctx context.Context, artifactDir string, input map[string]interface{}) (ActionResult, error) {
	src, err := sourcePath(artifactDir)
	if err != nil {
		return ActionResult{}, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return ActionResult{}, fmt.Errorf("backend: encode input: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.interpreter(), "-c", wrapperScript, src, "action")
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return ActionResult{Duration: duration, TimedOut: true, ErrorMsg: "timeout"}, nil
	}

	var envelope struct {
		Result interface{} `json:"result"`
		Error  string      `json:"error"`
	}
	if decodeErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &envelope); decodeErr != nil {
		msg := stderr.String()
		if msg == "" {
			msg = fmt.Sprintf("unparseable action output: %v", decodeErr)
		}
		return ActionResult{Duration: duration, ErrorMsg: msg}, nil
	}
	if envelope.Error != "" {
		return ActionResult{Duration: duration, ErrorMsg: envelope.Error}, nil
	}
	if runErr != nil {
		return ActionResult{Duration: duration, ErrorMsg: runErr.Error()}, nil
	}
	return ActionResult{Value: envelope.Result, Duration: duration}, nil
}

// HasEntryPoints reports whether the artifact source defines both
// verify and action, per spec.md section 4.3's "refuse if the
// artifact lacks either a verify or an action symbol".
func HasEntryPoints(code string) bool {
	return bytes.Contains([]byte(code), []byte("def verify")) && bytes.Contains([]byte(code), []byte("def action"))
}

// WrapperScript exposes the embedded harness script so the sandbox
// image build and the skill-harness binary can share exactly one
// implementation of the verify/action contract.
func WrapperScript() string { return wrapperScript }

// wrapperScript is the harness entry point that actually executes
// inside the sandbox: it loads the mounted artifact module, invokes
// either verify() or action(**input) per argv[2], and catches every
// BaseException — including SystemExit and KeyboardInterrupt — so an
// artifact cannot "succeed" merely by aborting the interpreter. Only
// a literal `True` return from verify() is treated as success.
const wrapperScript = `
import sys, json, importlib.util

def _load(path):
    spec = importlib.util.spec_from_file_location("skill_under_test", path)
    module = importlib.util.module_from_spec(spec)
    spec.loader.exec_module(module)
    return module

def _verify(path):
    module = _load(path)
    if not hasattr(module, "verify"):
        print("VERIFICATION_FAILED: missing verify")
        sys.exit(1)
    try:
        result = module.verify()
    except BaseException as e:
        print("VERIFICATION_FAILED: %s: %s" % (type(e).__name__, e))
        sys.exit(1)
    if result is True:
        print("VERIFICATION_SUCCESS")
        sys.exit(0)
    print("VERIFICATION_FAILED: non-true result %r" % (result,))
    sys.exit(1)

def _action(path):
    module = _load(path)
    if not hasattr(module, "action"):
        print(json.dumps({"error": "missing action"}))
        sys.exit(1)
    try:
        payload = json.loads(sys.stdin.read() or "{}")
        result = module.action(**payload)
        print(json.dumps({"result": result}))
    except BaseException as e:
        print(json.dumps({"error": "%s: %s" % (type(e).__name__, e)}))
        sys.exit(1)

if __name__ == "__main__":
    target, mode = sys.argv[1], sys.argv[2]
    if mode == "verify":
        _verify(target)
    elif mode == "action":
        _action(target)
    else:
        print("VERIFICATION_FAILED: unknown mode %s" % mode)
        sys.exit(1)
`
