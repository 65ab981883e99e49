package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boardsync/boardsync/internal/agent"
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/cache"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/reconcile"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/boardsync/boardsync/internal/task"
	"golang.org/x/time/rate"
)

// exit codes per spec.md §6.
const (
	exitOK           = 0
	exitBootstrap    = 2
	exitAuth         = 3
	exitConfig       = 4
)

// loadConfigOrExit loads the configuration file, exiting with a
// configuration error (exit 4) when the file cannot be read or parsed. A
// missing file is not treated as an error for any command: config.Load
// returns an empty configuration and the command continues with it.
func loadConfigOrExit(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitConfig)
	}
	return cfg
}

// newClient builds the Remote Client from a loaded configuration's
// credential provider.
func newClient(cfg *config.Config) *board.Client {
	var provider board.TokenProvider
	if cfg.Credential.Command != "" {
		provider = board.NewExecTokenProvider(cfg.Credential.Command, cfg.Credential.Args...)
	} else if env := os.Getenv("BOARDSYNC_TOKEN"); env != "" {
		provider = board.StaticTokenProvider(env)
	} else {
		provider = board.StaticTokenProvider("")
	}

	return board.NewClient(provider, board.ClientOptions{
		APIURL:    cfg.APIURL,
		RateLimit: rate.Limit(2),
		RateBurst: 4,
	})
}

// parseBoardRef parses a "<owner>/<number>" or bare "<number>" board-ref
// argument, falling back to the configuration's organization for the
// owner when only a number is given.
func parseBoardRef(cfg *config.Config, ref string) (reconcile.BoardRef, error) {
	owner := cfg.Organization
	numStr := ref
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		owner = ref[:idx]
		numStr = ref[idx+1:]
	}
	if owner == "" {
		return reconcile.BoardRef{}, fmt.Errorf("board-ref %q has no owner and no organization is configured", ref)
	}
	number, err := strconv.Atoi(numStr)
	if err != nil {
		return reconcile.BoardRef{}, fmt.Errorf("board-ref %q: invalid project number: %w", ref, err)
	}
	return reconcile.BoardRef{Owner: owner, Number: number}, nil
}

// agentConfig converts the configuration file's agent_mapping into the
// resolver's rule set, translating each declarative AgentRule into a
// predicate closure over a task's fields.
func agentConfig(cfg *config.Config) agent.Config {
	rs := cfg.AgentResolverConfig()

	identities := make(map[string]agent.Identity, len(rs.Identities))
	for name, id := range rs.Identities {
		identities[name] = agent.Identity{Login: id.Login, OptionName: id.Option}
	}

	rules := make([]agent.Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		r := r
		rules = append(rules, agent.Rule{
			Name:      r.Name,
			Agent:     r.Agent,
			Predicate: fieldEqualsPredicate(r.Field, r.Equals),
		})
	}

	return agent.Config{Identities: identities, Rules: rules, Default: rs.Default}
}

// stateDir returns the sibling directory that holds per-tag state files,
// co-located with the task file (spec.md §6 "State file ... co-located
// with the task file under a stable sibling directory").
func stateDir(taskFilePath string) string {
	return filepath.Join(filepath.Dir(taskFilePath), ".boardsync-state")
}

// boardCache gives every command a short-lived, process-lifetime cache
// for GetBoard lookups so a watch run's burst of coalesced syncs doesn't
// re-fetch the board schema on every single run.
func newBoardCache() *cache.Cache[*board.Board] {
	return cache.New[*board.Board](30*time.Second, 16)
}

// fieldEqualsPredicate builds the predicate an agent.Rule evaluates: task
// field equals the configured value, case-insensitively. Only the fields
// an owner-resolution rule plausibly keys on are supported; an unknown
// field name never matches, rather than panicking on a typo in config.
func fieldEqualsPredicate(field, equals string) func(t task.Task) bool {
	field = strings.ToLower(field)
	return func(t task.Task) bool {
		var value string
		switch field {
		case "status":
			value = string(t.Status)
		case "priority":
			value = string(t.Priority)
		case "owner":
			value = t.Owner
		default:
			return false
		}
		return strings.EqualFold(value, equals)
	}
}

func newSnapshotCache(taskFilePath string) *state.SnapshotCache {
	snaps, err := state.OpenSnapshotCache(filepath.Join(stateDir(taskFilePath), "snapshots.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: warning: board snapshot cache disabled: %v\n", err)
		return nil
	}
	return snaps
}
