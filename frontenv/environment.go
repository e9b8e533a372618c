package frontenv

import (
	"maps"
	"slices"
	"sync"
)

// Environment is the set of values exposed to the frontend as global
// variables. It is immutable once constructed and safe to share between
// any number of concurrent requests.
type Environment struct {
	vars map[string]string
	keys []string

	scriptOnce    sync.Once
	script        string
	escapedOnce   sync.Once
	escapedScript string
}

// NewEnvironment copies vars into a new Environment.
func NewEnvironment(vars map[string]string) *Environment {
	env := &Environment{
		vars: maps.Clone(vars),
	}
	if env.vars == nil {
		env.vars = make(map[string]string)
	}
	env.keys = slices.Sorted(maps.Keys(env.vars))
	return env
}

// Environment returns env itself so a fixed environment can be used
// wherever an EnvironmentSource is expected.
func (env *Environment) Environment() *Environment {
	return env
}

// Get returns the value stored under key.
func (env *Environment) Get(key string) (string, bool) {
	if env == nil {
		return "", false
	}
	v, ok := env.vars[key]
	return v, ok
}

// Len returns the number of variables.
func (env *Environment) Len() int {
	if env == nil {
		return 0
	}
	return len(env.keys)
}

// Keys returns the variable names in sorted order.
func (env *Environment) Keys() []string {
	if env == nil {
		return nil
	}
	return slices.Clone(env.keys)
}

// Map returns a copy of the variables.
func (env *Environment) Map() map[string]string {
	if env == nil {
		return map[string]string{}
	}
	return maps.Clone(env.vars)
}

// Equal reports whether env and other hold the same variables.
func (env *Environment) Equal(other *Environment) bool {
	if env.Len() != other.Len() {
		return false
	}
	if env.Len() == 0 {
		return true
	}
	return maps.Equal(env.vars, other.vars)
}

// ScriptBlock returns BuildScriptBlock(env), built once per environment.
func (env *Environment) ScriptBlock() string {
	if env == nil {
		return BuildScriptBlock(nil)
	}
	env.scriptOnce.Do(func() {
		env.script = BuildScriptBlock(env)
	})
	return env.script
}

// EscapedScriptBlock returns BuildEscapedScriptBlock(env), built once per
// environment.
func (env *Environment) EscapedScriptBlock() string {
	if env == nil {
		return BuildEscapedScriptBlock(nil)
	}
	env.escapedOnce.Do(func() {
		env.escapedScript = BuildEscapedScriptBlock(env)
	})
	return env.escapedScript
}

// EnvironmentSource supplies the environment for a single response. The
// returned value must not change after it is handed out; sources that
// reload swap in a new *Environment instead.
type EnvironmentSource interface {
	Environment() *Environment
}
