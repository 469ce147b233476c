package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/haasonsaas/skillrt/internal/skillerr"
	"github.com/haasonsaas/skillrt/pkg/models"
)

// DockerBackend runs the entry process inside a throwaway `docker run`
// container, applying the security policy as container flags instead of a
// host rlimit. Selected when a skill declares `security.isolation: docker`.
type DockerBackend struct {
	log   *slog.Logger
	image string
}

// DockerOption configures a DockerBackend.
type DockerOption func(*DockerBackend)

// WithImage overrides the default container image.
func WithImage(image string) DockerOption {
	return func(b *DockerBackend) { b.image = image }
}

// NewDockerBackend constructs a DockerBackend. image defaults to
// "skillrt-sandbox:latest" if unset via WithImage.
func NewDockerBackend(log *slog.Logger, opts ...DockerOption) *DockerBackend {
	if log == nil {
		log = slog.Default()
	}
	b := &DockerBackend{log: log, image: "skillrt-sandbox:latest"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute implements Backend.
func (b *DockerBackend) Execute(ctx context.Context, spec Spec) (Result, error) {
	if spec.CWD != "" {
		return Result{}, skillerr.Wrap(skillerr.SandboxFailed, skillerr.ErrCWDEntryConflict).WithSkill(spec.SkillName)
	}

	entry, err := sanitizeEntryPath(spec.EntryAbsolutePath)
	if err != nil {
		return Result{}, skillerr.Wrap(skillerr.SandboxFailed, err).WithSkill(spec.SkillName)
	}

	timeout := time.Duration(spec.Policy.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"run", "--rm", "-i"}
	if spec.Policy.Network != models.NetworkAllowlist {
		args = append(args, "--network", "none")
	}
	cpus := "1.00"
	mem := fmt.Sprintf("%dm", spec.Policy.MemoryMb)
	if spec.Policy.MemoryMb <= 0 {
		mem = "128m"
	}
	args = append(args,
		"--cpus", cpus,
		"--memory", mem,
		"--memory-swap", mem,
		"--pids-limit", "100",
		"--ulimit", "nofile=1024:1024",
	)
	if spec.Policy.Filesystem == models.FilesystemReadOnly {
		args = append(args, "--read-only")
	}
	for _, key := range spec.Env {
		if sanitizeEnvKey(key) {
			args = append(args, "-e", key)
		}
	}
	args = append(args, b.image, entry)
	for _, a := range spec.Args {
		sa, err := sanitizeArg(a)
		if err != nil {
			return Result{}, skillerr.Wrap(skillerr.SandboxFailed, err).WithSkill(spec.SkillName)
		}
		args = append(args, sa)
	}

	cmd := exec.CommandContext(runCtx, "docker", args...)
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{State: StateTimedOut, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration, ExitCode: -1},
			skillerr.New(skillerr.Timeout, fmt.Sprintf("skill %q exceeded %s", spec.SkillName, timeout)).WithSkill(spec.SkillName)
	}

	code := exitCodeOf(err)
	result := Result{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration, State: StateReported}
	if err != nil && code < 0 {
		return result, skillerr.Wrap(skillerr.SandboxFailed, fmt.Errorf("docker run: %w", err)).WithSkill(spec.SkillName)
	}
	return result, nil
}
