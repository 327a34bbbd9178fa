package command

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps lower-cased names and aliases to commands.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Command
	commands []Command
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Command)}
}

// Register adds commands. A name or alias already taken fails the whole call.
func (r *Registry) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make(map[string]Command)
	for _, cmd := range cmds {
		names := []string{cmd.Name()}
		if a, ok := cmd.(Aliased); ok {
			names = append(names, a.Aliases()...)
		}
		for _, name := range names {
			key := strings.ToLower(name)
			if key == "" || strings.ContainsAny(key, " \t\n") {
				return fmt.Errorf("command %q: invalid name %q", cmd.Name(), name)
			}
			if _, taken := r.byName[key]; taken {
				return fmt.Errorf("command %q: name %q already registered", cmd.Name(), name)
			}
			if _, taken := pending[key]; taken {
				return fmt.Errorf("command %q: name %q already registered", cmd.Name(), name)
			}
			pending[key] = cmd
		}
	}
	for key, cmd := range pending {
		r.byName[key] = cmd
	}
	r.commands = append(r.commands, cmds...)
	return nil
}

func (r *Registry) MustRegister(cmds ...Command) {
	if err := r.Register(cmds...); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns every command sorted by module, then name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	out := slices.Clone(r.commands)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Command) int {
		if c := strings.Compare(a.Module(), b.Module()); c != 0 {
			return c
		}
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}
