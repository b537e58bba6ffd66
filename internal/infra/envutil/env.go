// Package envutil prepares environments for MCP server processes.
package envutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// SkipPathPatchEnv disables the login shell PATH merge when set.
	SkipPathPatchEnv = "TOOLDISPATCH_SKIP_PATH_PATCH"

	defaultShell = "/bin/zsh"
	shellTimeout = 2 * time.Second
	pathMarker   = "__TOOLDISPATCH_PATH__"
)

// ShellPATHFunc reports the PATH a login shell would set up.
type ShellPATHFunc func(ctx context.Context, shell string) (string, error)

// Builder assembles child process environments. On macOS a server spawned
// by a desktop host inherits a minimal PATH without npx or uvx, so Builder
// merges in the login shell PATH unless a terminal is attached.
type Builder struct {
	goos      string
	shellPATH ShellPATHFunc

	mu     sync.Mutex
	lookup map[string]shellResult
}

type shellResult struct {
	path string
	err  error
}

// NewBuilder returns a Builder for the running platform.
func NewBuilder() *Builder {
	return newBuilder(runtime.GOOS, LoginShellPATH)
}

func newBuilder(goos string, shellPATH ShellPATHFunc) *Builder {
	return &Builder{goos: goos, shellPATH: shellPATH, lookup: make(map[string]shellResult)}
}

var defaultBuilder = NewBuilder()

// CommandEnv builds a server environment with the process-wide Builder.
func CommandEnv(base []string, overrides map[string]string) []string {
	return defaultBuilder.Build(base, overrides)
}

// Build returns base with overrides applied, PATH patched where needed.
// Overridden keys keep their position in base; new keys follow in sorted
// order. base is not modified.
func (b *Builder) Build(base []string, overrides map[string]string) []string {
	env := parseEnviron(base)
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		env.set(key, overrides[key])
	}
	b.patchPATH(env)
	return env.list()
}

func (b *Builder) patchPATH(env *environ) {
	if b.goos != "darwin" {
		return
	}
	if env.nonBlank(SkipPathPatchEnv) || env.nonBlank("TERM") {
		return
	}
	shell := strings.TrimSpace(env.get("SHELL"))
	if shell == "" {
		shell = defaultShell
	}
	loginPath, err := b.cachedShellPATH(shell)
	if err != nil || strings.TrimSpace(loginPath) == "" {
		return
	}
	current := env.get("PATH")
	if merged := joinPathLists(loginPath, current); merged != "" && merged != current {
		env.set("PATH", merged)
	}
}

// cachedShellPATH runs the shell at most once per shell path, failures
// included.
func (b *Builder) cachedShellPATH(shell string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if res, ok := b.lookup[shell]; ok {
		return res.path, res.err
	}
	ctx, cancel := context.WithTimeout(context.Background(), shellTimeout)
	defer cancel()
	path, err := b.shellPATH(ctx, shell)
	b.lookup[shell] = shellResult{path: path, err: err}
	return path, err
}

// LoginShellPATH asks shell for its login PATH. The value is fenced by
// markers because profile scripts may print banners.
func LoginShellPATH(ctx context.Context, shell string) (string, error) {
	script := fmt.Sprintf(`printf '%%s' "%s${PATH}%s"`, pathMarker, pathMarker)
	cmd := exec.CommandContext(ctx, shell, "-lc", script)
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("query %s login PATH: %w", shell, err)
	}
	return extractMarked(string(out))
}

func extractMarked(out string) (string, error) {
	start := strings.Index(out, pathMarker)
	if start < 0 {
		return "", fmt.Errorf("login shell output has no PATH marker")
	}
	rest := out[start+len(pathMarker):]
	end := strings.Index(rest, pathMarker)
	if end < 0 {
		return "", fmt.Errorf("login shell output has an unterminated PATH marker")
	}
	return strings.TrimSpace(rest[:end]), nil
}

// joinPathLists concatenates PATH lists, dropping blanks and repeats.
func joinPathLists(lists ...string) string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, list := range lists {
		for _, dir := range filepath.SplitList(list) {
			dir = strings.TrimSpace(dir)
			if dir == "" {
				continue
			}
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	return strings.Join(dirs, string(os.PathListSeparator))
}

// environ is an ordered KEY=VALUE set. Repeated keys collapse onto the
// first position with the last value, which is what exec.Cmd would use.
type environ struct {
	keys   []string
	values map[string]string
}

func parseEnviron(entries []string) *environ {
	env := &environ{values: make(map[string]string, len(entries))}
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env.set(key, value)
	}
	return env
}

func (e *environ) get(key string) string {
	return e.values[key]
}

func (e *environ) nonBlank(key string) bool {
	return strings.TrimSpace(e.values[key]) != ""
}

func (e *environ) set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *environ) list() []string {
	out := make([]string, 0, len(e.keys))
	for _, key := range e.keys {
		out = append(out, key+"="+e.values[key])
	}
	return out
}
