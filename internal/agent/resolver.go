// Package agent implements the Agent Resolver (C7): a pure function that
// maps a task's declared owner to a remote agent assignment using a
// configured rule set. It never contacts the remote side.
package agent

import "github.com/boardsync/boardsync/internal/task"

// Identity is one named agent's remote login and board option name.
type Identity struct {
	Login      string
	OptionName string
}

// Rule matches a task against a predicate and, on match, names a target
// agent. Rules are evaluated in priority order; the first match wins
// (spec.md §4.7).
type Rule struct {
	Name      string
	Predicate func(task.Task) bool
	Agent     string // key into Config.Identities
}

// Config is the resolver's rule set: a name->identity map, a list of
// priority-ordered rules, and a default agent applied when nothing else
// matches.
type Config struct {
	Identities map[string]Identity
	Rules      []Rule
	Default    string
}

// Assignment is the resolver's output: the option name to set on the
// board's Agent field, and, if the target agent has one, its remote login.
type Assignment struct {
	OptionName string
	RemoteLogin string
}

// Resolve picks an agent for t: an explicit, non-empty t.Owner wins
// outright; otherwise rules fire in order, first match wins; the
// configured default applies if nothing matches (spec.md §4.7).
func Resolve(cfg Config, t task.Task) Assignment {
	if t.Owner != "" {
		if id, ok := cfg.Identities[t.Owner]; ok {
			return Assignment{OptionName: id.OptionName, RemoteLogin: id.Login}
		}
		// An owner string that isn't a known logical agent is used
		// verbatim as the option name, so ad hoc owners still show up on
		// the board instead of silently falling through to the default.
		return Assignment{OptionName: t.Owner}
	}

	for _, rule := range cfg.Rules {
		if rule.Predicate == nil || !rule.Predicate(t) {
			continue
		}
		if id, ok := cfg.Identities[rule.Agent]; ok {
			return Assignment{OptionName: id.OptionName, RemoteLogin: id.Login}
		}
		return Assignment{OptionName: rule.Agent}
	}

	if id, ok := cfg.Identities[cfg.Default]; ok {
		return Assignment{OptionName: id.OptionName, RemoteLogin: id.Login}
	}
	return Assignment{OptionName: cfg.Default}
}
