// Package perms resolves the permission level of a guild member.
package perms

import (
	"fmt"
	"strings"
)

type Level int

const (
	Base Level = iota
	User
	DJ
	Admin
	BotAdmin
	BotOwner
)

var levelNames = [...]string{"BASE", "USER", "DJ", "ADMIN", "BOT_ADMIN", "BOT_OWNER"}

func (l Level) String() string {
	if l < Base || l > BotOwner {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// AtLeast reports whether l satisfies the minimum level required.
func (l Level) AtLeast(required Level) bool {
	return l >= required
}

func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return Base, fmt.Errorf("unknown permission level %q", s)
}
