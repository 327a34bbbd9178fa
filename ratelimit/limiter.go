// Package ratelimit enforces sliding-window command limits per user or per
// guild, with a whitelist and an escalating automatic blacklist.
package ratelimit

import (
	"fmt"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Scope int

const (
	ScopeUser Scope = iota
	ScopeGuild
)

func (s Scope) String() string {
	if s == ScopeGuild {
		return "guild"
	}
	return "user"
}

// Rule allows Limit invocations per Window. An empty Commands and Modules
// filter matches every command.
type Rule struct {
	Name     string
	Scope    Scope
	Limit    int
	Window   time.Duration
	Commands []string
	Modules  []string
}

func (r Rule) matches(command, module string) bool {
	if len(r.Commands) == 0 && len(r.Modules) == 0 {
		return true
	}
	return slices.Contains(r.Commands, command) || slices.Contains(r.Modules, module)
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "user", Scope: ScopeUser, Limit: 5, Window: 10 * time.Second},
		{Name: "user-shards", Scope: ScopeUser, Limit: 2, Window: 30 * time.Second, Commands: []string{"shards"}},
		{Name: "guild", Scope: ScopeGuild, Limit: 10, Window: 10 * time.Second},
	}
}

// BlacklistSteps are the successive durations of an automatic blacklist.
var BlacklistSteps = []time.Duration{time.Minute, 10 * time.Minute, time.Hour, 6 * time.Hour, 24 * time.Hour}

type Option func(*Limiter)

// WithRules replaces the default rules. Rules without a positive limit and
// window can never be satisfied and are left out.
func WithRules(rules ...Rule) Option {
	return func(l *Limiter) {
		l.rules = make([]Rule, 0, len(rules))
		for _, rule := range rules {
			if rule.Limit > 0 && rule.Window > 0 {
				l.rules = append(l.rules, rule)
			}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.log = logger
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(l *Limiter) {
		if sink != nil {
			l.metrics = sink
		}
	}
}

// WithAutoBlacklist blacklists a user after threshold limit hits. A
// threshold of zero disables it.
func WithAutoBlacklist(threshold int) Option {
	return func(l *Limiter) {
		l.threshold = threshold
	}
}

// WithWhitelist exempts the given user ids from every rule.
func WithWhitelist(ids ...snowflake.ID) Option {
	return func(l *Limiter) {
		for _, id := range ids {
			l.whitelist[id] = struct{}{}
		}
	}
}

type windowKey struct {
	rule int
	id   snowflake.ID
}

type ban struct {
	until time.Time
	level int
}

type Limiter struct {
	mu        sync.Mutex
	rules     []Rule
	now       func() time.Time
	log       *slog.Logger
	metrics   metrics.Sink
	threshold int
	whitelist map[snowflake.ID]struct{}
	windows   map[windowKey][]time.Time
	hits      map[snowflake.ID]int
	bans      map[snowflake.ID]ban
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		rules:     DefaultRules(),
		now:       time.Now,
		log:       dlog.Discard(),
		metrics:   metrics.Noop(),
		threshold: 10,
		whitelist: make(map[snowflake.ID]struct{}),
		windows:   make(map[windowKey][]time.Time),
		hits:      make(map[snowflake.ID]int),
		bans:      make(map[snowflake.ID]ban),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decision explains an Allow result.
type Decision struct {
	Allowed bool
	Rule    string
	// RetryAfter is how long until the oldest counted invocation leaves
	// the window.
	RetryAfter time.Duration
	// Blacklisted is set when this hit triggered an automatic blacklist.
	Blacklisted bool
}

// Allow counts one invocation of command by userID in guildID. Rules apply
// in order and the first one exceeded denies; rules checked before it still
// count the invocation.
func (l *Limiter) Allow(userID, guildID snowflake.ID, command, module string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.whitelist[userID]; ok {
		return Decision{Allowed: true}
	}
	now := l.now()
	for i, rule := range l.rules {
		if !rule.matches(command, module) {
			continue
		}
		key := windowKey{rule: i, id: userID}
		if rule.Scope == ScopeGuild {
			key.id = guildID
		}
		stamps := trim(l.windows[key], now, rule.Window)
		if len(stamps) >= rule.Limit {
			l.windows[key] = stamps
			d := Decision{Rule: rule.Name, RetryAfter: rule.Window - now.Sub(stamps[0])}
			l.metrics.Count("ratelimit.denied", rule.Name)
			if rule.Scope == ScopeUser {
				d.Blacklisted = l.hit(userID, now)
			}
			return d
		}
		l.windows[key] = append(stamps, now)
	}
	return Decision{Allowed: true}
}

func trim(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	keep := stamps[:0]
	for _, t := range stamps {
		if now.Sub(t) < window {
			keep = append(keep, t)
		}
	}
	return keep
}

func (l *Limiter) hit(userID snowflake.ID, now time.Time) bool {
	if l.threshold <= 0 {
		return false
	}
	l.hits[userID]++
	if l.hits[userID] < l.threshold {
		return false
	}
	delete(l.hits, userID)
	level := 0
	if prev, ok := l.bans[userID]; ok {
		level = min(prev.level+1, len(BlacklistSteps)-1)
	}
	l.bans[userID] = ban{until: now.Add(BlacklistSteps[level]), level: level}
	l.metrics.Count("ratelimit.blacklisted", fmt.Sprint(level))
	l.log.Warn("Blacklisted user for repeated rate limit hits", "user", userID, "duration", BlacklistSteps[level])
	return true
}

// Blacklisted reports whether userID is currently blacklisted.
func (l *Limiter) Blacklisted(userID snowflake.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bans[userID]
	return ok && l.now().Before(b.until)
}

// Blacklist bans userID for d, or until lifted.
func (l *Limiter) Blacklist(userID snowflake.ID, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bans[userID] = ban{until: l.now().Add(d)}
}

func (l *Limiter) Lift(userID snowflake.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bans, userID)
	delete(l.hits, userID)
}

// Sweep drops empty windows. Expired bans are kept so a repeat offender
// escalates, until a full day has passed since they ended.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for key, stamps := range l.windows {
		stamps = trim(stamps, now, l.rules[key.rule].Window)
		if len(stamps) == 0 {
			delete(l.windows, key)
			removed++
			continue
		}
		l.windows[key] = stamps
	}
	for id, b := range l.bans {
		if now.Sub(b.until) > 24*time.Hour {
			delete(l.bans, id)
			removed++
		}
	}
	return removed
}
