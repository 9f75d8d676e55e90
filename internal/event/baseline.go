package event

import (
	"os"
	"sort"
	"strings"
)

// BaselineInfo is the tracer's own environment captured once at startup.
// It is the reference point for "what changed" reporting on traced
// processes' environments and is immutable for the session.
type BaselineInfo struct {
	Env map[string]string
}

// CaptureBaseline snapshots the current process environment.
func CaptureBaseline() BaselineInfo {
	env := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		k, v := SplitEnvEntry(kv)
		env[k] = v
	}
	return BaselineInfo{Env: env}
}

// SplitEnvEntry splits a raw KEY=VALUE environ entry. Entries with no
// '=' yield an empty value. A leading '=' (seen on some platforms for
// drive-letter entries) is kept as part of the key, matching the kernel's
// view that the separator is the first '=' after a non-empty key.
func SplitEnvEntry(kv string) (key, value string) {
	sep := strings.IndexByte(kv, '=')
	if sep == 0 {
		if next := strings.IndexByte(kv[1:], '='); next >= 0 {
			sep = next + 1
		} else {
			sep = -1
		}
	}
	if sep < 0 {
		return kv, ""
	}
	return kv[:sep], kv[sep+1:]
}

// EnvVar is a single KEY=VALUE pair in a diff result.
type EnvVar struct {
	Key   string
	Value string
}

// EnvDiff is the difference between a traced process's envp and the
// baseline. Added and Modified preserve envp order; Removed is sorted by
// key so output is deterministic regardless of map iteration order.
type EnvDiff struct {
	Added    []EnvVar
	Modified []EnvVar
	Removed  []EnvVar
}

// Empty reports whether the environment matched the baseline exactly.
func (d EnvDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// DiffEnv compares a raw envp array against the baseline. Duplicate keys
// in envp follow last-one-wins, which is how libc getenv resolves them.
func (b BaselineInfo) DiffEnv(envp []string) EnvDiff {
	traced := make(map[string]string, len(envp))
	order := make([]string, 0, len(envp))
	for _, kv := range envp {
		k, v := SplitEnvEntry(kv)
		if _, ok := traced[k]; !ok {
			order = append(order, k)
		}
		traced[k] = v
	}

	var diff EnvDiff
	for _, k := range order {
		v := traced[k]
		base, inBase := b.Env[k]
		switch {
		case !inBase:
			diff.Added = append(diff.Added, EnvVar{Key: k, Value: v})
		case base != v:
			diff.Modified = append(diff.Modified, EnvVar{Key: k, Value: v})
		}
	}

	for k, v := range b.Env {
		if _, ok := traced[k]; !ok {
			diff.Removed = append(diff.Removed, EnvVar{Key: k, Value: v})
		}
	}
	sort.Slice(diff.Removed, func(i, j int) bool {
		return diff.Removed[i].Key < diff.Removed[j].Key
	})
	return diff
}
