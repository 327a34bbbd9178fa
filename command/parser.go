package command

import (
	"github.com/disgoorg/snowflake/v2"
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`(?s)^(<@!?([0-9]+)>)(.*)$`)

// Invocation is a parsed command line.
type Invocation struct {
	Command Command
	Trigger string
	Args    []string
	Prefix  string
}

// Parser recognises command lines addressed to the bot: a mention of the
// bot, the guild prefix, or the default prefix for the commands that must
// stay reachable after a prefix change.
type Parser struct {
	Registry      *Registry
	DefaultPrefix string
	HelpCommand   string
	// PrefixCommand answers a bare mention and stays on the default prefix.
	PrefixCommand string
}

func (p Parser) Parse(content, guildPrefix string, selfID snowflake.ID) (Invocation, bool) {
	text := strings.TrimSpace(content)
	if m := mentionPattern.FindStringSubmatch(text); m != nil {
		if id, err := snowflake.Parse(m[2]); err == nil && id == selfID && selfID != 0 {
			rest := strings.TrimSpace(m[3])
			if rest == "" {
				return p.lookup(m[1], p.PrefixCommand, nil)
			}
			return p.split(m[1], rest, nil)
		}
	}
	prefix := guildPrefix
	if prefix == "" {
		prefix = p.DefaultPrefix
	}
	if rest, ok := cutPrefix(text, prefix); ok {
		return p.split(prefix, rest, nil)
	}
	if prefix != p.DefaultPrefix {
		if rest, ok := cutPrefix(text, p.DefaultPrefix); ok {
			return p.split(p.DefaultPrefix, rest, []string{p.HelpCommand, p.PrefixCommand})
		}
	}
	return Invocation{}, false
}

// LooksLikeHelp is a cheap test for text that may invoke the help command.
func (p Parser) LooksLikeHelp(content string) bool {
	return p.HelpCommand != "" && strings.Contains(strings.ToLower(content), strings.ToLower(p.HelpCommand))
}

// IsHelp reports whether cmd is the help command, whichever of its names
// HelpCommand is configured as.
func (p Parser) IsHelp(cmd Command) bool {
	return p.is(cmd, p.HelpCommand)
}

func (p Parser) is(cmd Command, name string) bool {
	if name == "" {
		return false
	}
	if p.Registry != nil {
		if named, ok := p.Registry.Lookup(name); ok {
			return strings.EqualFold(named.Name(), cmd.Name())
		}
	}
	return strings.EqualFold(cmd.Name(), name)
}

func cutPrefix(text, prefix string) (string, bool) {
	if prefix == "" || len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return "", false
	}
	return text[len(prefix):], true
}

func (p Parser) split(prefix, rest string, only []string) (Invocation, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Invocation{}, false
	}
	return p.lookup(prefix, fields[0], fields[1:], only...)
}

func (p Parser) lookup(prefix, trigger string, args []string, only ...string) (Invocation, bool) {
	cmd, ok := p.Registry.Lookup(trigger)
	if !ok {
		return Invocation{}, false
	}
	if len(only) > 0 {
		allowed := false
		for _, name := range only {
			if p.is(cmd, name) {
				allowed = true
			}
		}
		if !allowed {
			return Invocation{}, false
		}
	}
	return Invocation{Command: cmd, Trigger: strings.ToLower(trigger), Args: args, Prefix: prefix}, true
}
