package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	shellMetachars = regexp.MustCompile(`[;&|` + "`" + `$<>]`)
	controlChars   = regexp.MustCompile(`[\r\n]`)
)

// sanitizeEntryPath validates the skill's entry path before it is ever
// handed to exec.CommandContext: no null bytes, no control characters, no
// shell metacharacters. Entry paths are always relative-then-joined by the
// caller, so unlike a bare executable name this never needs to reject a
// leading "-".
func sanitizeEntryPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("entry path is empty")
	}
	if strings.Contains(trimmed, "\x00") {
		return "", fmt.Errorf("entry path contains a null byte")
	}
	if controlChars.MatchString(trimmed) {
		return "", fmt.Errorf("entry path contains control characters")
	}
	if shellMetachars.MatchString(trimmed) {
		return "", fmt.Errorf("entry path contains shell metacharacters")
	}
	return trimmed, nil
}

// sanitizeArg validates one argument passed to the skill's entry process.
// Arguments may start with "-" and contain quotes (legitimate CLI flags),
// but never null bytes, control characters, or shell metacharacters — the
// process is always invoked directly via exec.CommandContext, never through
// a shell, so this guards against a downstream consumer re-shelling the
// argument rather than against injection into this call itself.
func sanitizeArg(arg string) (string, error) {
	if strings.Contains(arg, "\x00") {
		return "", fmt.Errorf("argument contains a null byte")
	}
	if controlChars.MatchString(arg) {
		return "", fmt.Errorf("argument contains control characters")
	}
	if shellMetachars.MatchString(arg) {
		return "", fmt.Errorf("argument contains shell metacharacters")
	}
	return arg, nil
}

// sanitizeEnvKey validates an environment variable name forwarded from the
// host into the sandbox's allowlist.
func sanitizeEnvKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
