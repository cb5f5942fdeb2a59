package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	dockermount "github.com/docker/docker/api/types/mount"
)

// ErrNetworkNotPermitted is returned by NewRunner when the caller asks
// for a non-"none" network mode without opting in via AllowNetwork,
// per spec.md section 4.3: "Default construction MUST refuse a
// non-none mode."
var ErrNetworkNotPermitted = errors.New("sandbox: non-none network mode requires AllowNetwork")

// ErrRuntimeUnavailable indicates the container runtime could not be
// reached or the harness image is missing locally.
var ErrRuntimeUnavailable = errors.New("sandbox: container runtime unavailable")

// Config describes the isolation contract for one sandbox run. Zero
// values are filled in by Defaults().
type Config struct {
	Image            string
	NetworkMode      string // "none" unless AllowNetwork is set
	AllowNetwork     bool
	MemoryLimitBytes int64
	PidsLimit        int64
	CPUQuota         int64 // microseconds per 100ms period; 100000 == one core
	Timeout          time.Duration
	ScratchPath      string
	ScratchSizeBytes int64
}

// Defaults returns the isolation contract's non-negotiable baseline
// from spec.md section 4.3.
func Defaults() Config {
	return Config{
		Image:            "skillforge-harness:latest",
		NetworkMode:      "none",
		MemoryLimitBytes: 512 * 1024 * 1024,
		PidsLimit:        128,
		CPUQuota:         100000,
		Timeout:          30 * time.Second,
		ScratchPath:      "/tmp/scratch",
		ScratchSizeBytes: 64 * 1024 * 1024,
	}
}

// Decision is the runner's verdict for one artifact run.
type Decision struct {
	Passed  bool
	Logs    string
	Metrics map[string]interface{}
}

// Runner executes one artifact per container run under Config's
// isolation contract.
type Runner struct {
	client *Client
	cfg    Config
}

// NewRunner validates cfg and returns a Runner. Passing a non-"none"
// NetworkMode without AllowNetwork is rejected outright so a caller
// cannot accidentally grant network access.
func NewRunner(c *Client, cfg Config) (*Runner, error) {
	if cfg.NetworkMode == "" {
		cfg.NetworkMode = "none"
	}
	if cfg.NetworkMode != "none" && !cfg.AllowNetwork {
		return nil, ErrNetworkNotPermitted
	}
	if cfg.MemoryLimitBytes == 0 {
		cfg.MemoryLimitBytes = Defaults().MemoryLimitBytes
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = Defaults().PidsLimit
	}
	if cfg.CPUQuota == 0 {
		cfg.CPUQuota = Defaults().CPUQuota
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Defaults().Timeout
	}
	if cfg.ScratchPath == "" {
		cfg.ScratchPath = Defaults().ScratchPath
	}
	if cfg.ScratchSizeBytes == 0 {
		cfg.ScratchSizeBytes = Defaults().ScratchSizeBytes
	}
	if cfg.Image == "" {
		cfg.Image = Defaults().Image
	}
	return &Runner{client: c, cfg: cfg}, nil
}

// IsAvailable reports true only when the container runtime is
// reachable AND the harness image exists locally, per spec.md section
// 4.3's availability probe.
func (r *Runner) IsAvailable(ctx context.Context) bool {
	if r.client == nil {
		return false
	}
	if err := r.client.Ping(ctx); err != nil {
		return false
	}
	return r.client.ImageExists(ctx, r.cfg.Image)
}

// Run launches one container mounting artifactDir read-only at /skill,
// enforces the wall-clock timeout, and computes the pass/fail decision
// from (exit code, combined logs) per spec.md section 4.3's runner
// decision rule: both the container must exit 0 AND the logs must
// contain the literal success sentinel.
func (r *Runner) Run(ctx context.Context, artifactDir string) (Decision, error) {
	cfg := &container.Config{
		Image:      r.cfg.Image,
		Cmd:        []string{"/usr/local/bin/skill-harness", "/skill"},
		WorkingDir: "/",
	}

	hostCfg := &container.HostConfig{
		ReadonlyRootfs: true,
		NetworkMode:    container.NetworkMode(r.cfg.NetworkMode),
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitBytes,
			PidsLimit: &r.cfg.PidsLimit,
			CPUPeriod: 100000,
			CPUQuota:  r.cfg.CPUQuota,
		},
		Tmpfs: map[string]string{
			r.cfg.ScratchPath: fmt.Sprintf("size=%d,noexec", r.cfg.ScratchSizeBytes),
		},
		Mounts: []dockermount.Mount{
			{
				Type:     dockermount.TypeBind,
				Source:   artifactDir,
				Target:   "/skill",
				ReadOnly: true,
			},
		},
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	containerID, err := r.client.CreateAndStart(runCtx, cfg, hostCfg)
	if err != nil {
		return Decision{}, err
	}
	defer func() { _ = r.client.Remove(context.Background(), containerID) }()

	exitCode, waitErr := r.client.Wait(runCtx, containerID)
	logs, _ := r.client.Logs(context.Background(), containerID)

	metrics := map[string]interface{}{
		"exit_code": exitCode,
	}

	if waitErr != nil {
		metrics["timeout"] = true
		return Decision{Passed: false, Logs: logs, Metrics: metrics}, nil
	}

	passed := exitCode == 0 && strings.Contains(logs, "VERIFICATION_SUCCESS")
	return Decision{Passed: passed, Logs: logs, Metrics: metrics}, nil
}
