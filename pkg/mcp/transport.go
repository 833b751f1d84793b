package mcp

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// newCommand builds the child process command. The child inherits the
// parent environment plus the configured overrides. Template variables in
// Env are already resolved by the config loader.
func newCommand(opts Options) (*exec.Cmd, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("tool server command is empty")
	}

	cmd := exec.Command(opts.Command, opts.Args...)

	env := os.Environ()
	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	cmd.Env = env

	return cmd, nil
}
