package execmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/skillrt/internal/sandbox"
	"github.com/haasonsaas/skillrt/internal/skillerr"
	"github.com/haasonsaas/skillrt/pkg/models"
)

func TestNarrowPolicyNilOverrideReturnsDeclared(t *testing.T) {
	declared := models.SecurityPolicy{TimeoutMs: 3000, MemoryMb: 128, Network: models.NetworkNone}
	got := narrowPolicy(declared, nil)
	if got != declared {
		t.Errorf("narrowPolicy(nil override) = %+v, want %+v", got, declared)
	}
}

func TestNarrowPolicyNeverWidensTimeoutOrMemory(t *testing.T) {
	declared := models.SecurityPolicy{TimeoutMs: 1000, MemoryMb: 64}
	wider := &models.SecurityPolicy{TimeoutMs: 5000, MemoryMb: 512}

	got := narrowPolicy(declared, wider)
	if got.TimeoutMs != 1000 {
		t.Errorf("TimeoutMs = %d, want unchanged 1000 (override was wider)", got.TimeoutMs)
	}
	if got.MemoryMb != 64 {
		t.Errorf("MemoryMb = %d, want unchanged 64 (override was wider)", got.MemoryMb)
	}
}

func TestNarrowPolicyAppliesStricterOverride(t *testing.T) {
	declared := models.SecurityPolicy{TimeoutMs: 5000, MemoryMb: 512}
	stricter := &models.SecurityPolicy{TimeoutMs: 500, MemoryMb: 32}

	got := narrowPolicy(declared, stricter)
	if got.TimeoutMs != 500 {
		t.Errorf("TimeoutMs = %d, want 500", got.TimeoutMs)
	}
	if got.MemoryMb != 32 {
		t.Errorf("MemoryMb = %d, want 32", got.MemoryMb)
	}
}

func TestNarrowPolicyNetworkNeverWidensPastNone(t *testing.T) {
	declared := models.SecurityPolicy{Network: models.NetworkNone}
	override := &models.SecurityPolicy{Network: models.NetworkAllowlist, NetworkAllowlist: []string{"example.com"}}

	got := narrowPolicy(declared, override)
	if got.Network != models.NetworkNone {
		t.Errorf("Network = %q, want none (cannot be widened by override)", got.Network)
	}
	if got.NetworkAllowlist != nil {
		t.Errorf("NetworkAllowlist = %v, want untouched/nil", got.NetworkAllowlist)
	}
}

func TestNarrowPolicyFilesystemOnlyMovesTowardNone(t *testing.T) {
	declared := models.SecurityPolicy{Filesystem: models.FilesystemReadWrite}
	override := &models.SecurityPolicy{Filesystem: models.FilesystemReadOnly}

	got := narrowPolicy(declared, override)
	if got.Filesystem != models.FilesystemReadOnly {
		t.Errorf("Filesystem = %q, want read-only", got.Filesystem)
	}

	// Attempting to widen from none to read-write must never succeed.
	declaredNone := models.SecurityPolicy{Filesystem: models.FilesystemNone}
	widen := &models.SecurityPolicy{Filesystem: models.FilesystemReadWrite}
	got2 := narrowPolicy(declaredNone, widen)
	if got2.Filesystem != models.FilesystemNone {
		t.Errorf("Filesystem = %q, want none (override tried to widen)", got2.Filesystem)
	}
}

func TestJoinEntry(t *testing.T) {
	tests := []struct {
		skillPath, entry, want string
	}{
		{"/skills/pdf-fill", "./scripts/execute", "/skills/pdf-fill/scripts/execute"},
		{"/skills/pdf-fill", "scripts/execute", "/skills/pdf-fill/scripts/execute"},
	}
	for _, tt := range tests {
		if got := joinEntry(tt.skillPath, tt.entry); got != tt.want {
			t.Errorf("joinEntry(%q, %q) = %q, want %q", tt.skillPath, tt.entry, got, tt.want)
		}
	}
}

func TestNormalizeResultSuccessJSON(t *testing.T) {
	r := sandbox.Result{ExitCode: 0, Stdout: `{"count": 3}`}
	resp := normalizeResult(r, nil, 10*time.Millisecond, "pdf-fill")

	if !resp.Success {
		t.Fatal("Success = false, want true")
	}
	if resp.Result.Format != models.FormatObject {
		t.Errorf("Format = %q, want object", resp.Result.Format)
	}
}

func TestNormalizeResultSuccessPlainText(t *testing.T) {
	r := sandbox.Result{ExitCode: 0, Stdout: "plain output, not json"}
	resp := normalizeResult(r, nil, 10*time.Millisecond, "pdf-fill")

	if !resp.Success {
		t.Fatal("Success = false, want true")
	}
	if resp.Result.Format != models.FormatText {
		t.Errorf("Format = %q, want text", resp.Result.Format)
	}
	if resp.Result.Data != "plain output, not json" {
		t.Errorf("Data = %v, want raw stdout", resp.Result.Data)
	}
}

func TestNormalizeResultNonZeroExit(t *testing.T) {
	r := sandbox.Result{ExitCode: 1, Stderr: "something went wrong"}
	resp := normalizeResult(r, nil, 10*time.Millisecond, "pdf-fill")

	if resp.Success {
		t.Fatal("Success = true, want false for non-zero exit")
	}
	if resp.Error.Code != string(skillerr.RuntimeError) {
		t.Errorf("Error.Code = %q, want runtime_error", resp.Error.Code)
	}
	if resp.Error.Message != "something went wrong" {
		t.Errorf("Error.Message = %q, want stderr tail", resp.Error.Message)
	}
}

func TestNormalizeResultNonZeroExitWithNoStderr(t *testing.T) {
	r := sandbox.Result{ExitCode: 7}
	resp := normalizeResult(r, nil, 10*time.Millisecond, "pdf-fill")
	if resp.Success {
		t.Fatal("Success = true, want false")
	}
	if resp.Error.Message == "" {
		t.Error("Error.Message is empty, want a generic fallback message")
	}
}

func TestNormalizeResultSandboxError(t *testing.T) {
	sbErr := skillerr.New(skillerr.Timeout, "exceeded deadline")
	resp := normalizeResult(sandbox.Result{}, sbErr, 10*time.Millisecond, "pdf-fill")

	if resp.Success {
		t.Fatal("Success = true, want false")
	}
	if resp.Error.Code != string(skillerr.Timeout) {
		t.Errorf("Error.Code = %q, want timeout", resp.Error.Code)
	}
}

func TestNormalizeResultTruncatesLongStderr(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	r := sandbox.Result{ExitCode: 1, Stderr: string(long)}
	resp := normalizeResult(r, nil, time.Millisecond, "pdf-fill")

	if len(resp.Error.Message) != 500 {
		t.Errorf("len(Error.Message) = %d, want 500 (tail-truncated)", len(resp.Error.Message))
	}
}

func TestFingerprintOfIsStableAndDiscriminating(t *testing.T) {
	a := models.ExecutionRequest{SkillName: "pdf-fill", Parameters: []byte(`{"path":"a.pdf"}`)}
	b := models.ExecutionRequest{SkillName: "pdf-fill", Parameters: []byte(`{"path":"a.pdf"}`)}
	c := models.ExecutionRequest{SkillName: "pdf-fill", Parameters: []byte(`{"path":"b.pdf"}`)}

	if fingerprintOf(a) != fingerprintOf(b) {
		t.Error("fingerprintOf differs for identical requests")
	}
	if fingerprintOf(a) == fingerprintOf(c) {
		t.Error("fingerprintOf collides for requests with different parameters")
	}
}

func TestErrorResponseReportsPositiveExecutionTime(t *testing.T) {
	err := skillerr.New(skillerr.SkillNotFound, "not found")

	resp := errorResponse(err, 0)
	if resp.Metadata.ExecutionTimeMs <= 0 {
		t.Errorf("ExecutionTimeMs = %d, want > 0 even for a near-instant failure", resp.Metadata.ExecutionTimeMs)
	}

	resp2 := errorResponse(err, 50*time.Millisecond)
	if resp2.Metadata.ExecutionTimeMs != 50 {
		t.Errorf("ExecutionTimeMs = %d, want 50", resp2.Metadata.ExecutionTimeMs)
	}
}

func TestExecutionErrorOfUnwrapsTaxonomyCode(t *testing.T) {
	err := skillerr.New(skillerr.QueueFull, "full")
	got := executionErrorOf(err)
	if got.Code != string(skillerr.QueueFull) {
		t.Errorf("Code = %q, want queue_full", got.Code)
	}

	plain := errors.New("unstructured")
	got2 := executionErrorOf(plain)
	if got2.Code != string(skillerr.RuntimeError) {
		t.Errorf("Code = %q, want runtime_error fallback", got2.Code)
	}
}
