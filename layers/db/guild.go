package db

import (
	"context"
	"fmt"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/config"
	"slices"
	"time"
)

// GuildConfig is the node a guild's settings are stored in. Lists are
// stored as strings; an absent list reads back as empty.
type GuildConfig struct {
	Id              string   `json:"id,omitempty"`
	Prefix          string   `json:"prefix,omitempty"`
	EnabledModules  []string `json:"enabledModules,omitempty"`
	DisabledModules []string `json:"disabledModules,omitempty"`
	AdminList       []string `json:"adminList,omitempty"`
	DJList          []string `json:"djList,omitempty"`
	UserList        []string `json:"userList,omitempty"`
	HelloSentAt     int64    `json:"helloSentAt,omitempty"`
}

func NewGuildConfig(g config.Guild) GuildConfig {
	node := GuildConfig{
		Id:        g.GuildID.String(),
		Prefix:    g.Prefix,
		AdminList: idStrings(g.AdminList),
		DJList:    idStrings(g.DJList),
		UserList:  idStrings(g.UserList),
	}
	for module, enabled := range g.Modules {
		if enabled {
			node.EnabledModules = append(node.EnabledModules, module)
		} else {
			node.DisabledModules = append(node.DisabledModules, module)
		}
	}
	slices.Sort(node.EnabledModules)
	slices.Sort(node.DisabledModules)
	if !g.HelloSentAt.IsZero() {
		node.HelloSentAt = g.HelloSentAt.UnixMilli()
	}
	return node
}

func (n GuildConfig) Guild() (config.Guild, error) {
	id, err := snowflake.Parse(n.Id)
	if err != nil {
		return config.Guild{}, fmt.Errorf("guild id %q: %w", n.Id, err)
	}
	g := config.Guild{GuildID: id, Prefix: n.Prefix}
	for _, list := range []struct {
		from []string
		to   *[]snowflake.ID
	}{{n.AdminList, &g.AdminList}, {n.DJList, &g.DJList}, {n.UserList, &g.UserList}} {
		if *list.to, err = parseIDs(list.from); err != nil {
			return config.Guild{}, err
		}
	}
	if len(n.EnabledModules)+len(n.DisabledModules) > 0 {
		g.Modules = make(map[string]bool, len(n.EnabledModules)+len(n.DisabledModules))
		for _, m := range n.EnabledModules {
			g.Modules[m] = true
		}
		for _, m := range n.DisabledModules {
			g.Modules[m] = false
		}
	}
	if n.HelloSentAt != 0 {
		g.HelloSentAt = time.UnixMilli(n.HelloSentAt).UTC()
	}
	return g, nil
}

func idStrings(ids []snowflake.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseIDs(in []string) ([]snowflake.ID, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]snowflake.ID, 0, len(in))
	for _, s := range in {
		id, err := snowflake.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// GuildStore implements config.Store on top of a Session. Guilds without a
// node get config.DefaultGuild.
type GuildStore struct {
	session Session
}

func NewGuildStore(session Session) *GuildStore {
	return &GuildStore{session: session}
}

func (s *GuildStore) FetchGuild(ctx context.Context, id snowflake.ID) (config.Guild, error) {
	stmt, err := Match("g", GuildConfig{Id: id.String()}).Return("g").Build()
	if err != nil {
		return config.Guild{}, fmt.Errorf("fetch guild %s: %w", id, err)
	}
	result, err := s.session.Query(ctx, stmt)
	if err != nil {
		return config.Guild{}, fmt.Errorf("fetch guild %s: %w", id, err)
	}
	node, ok, err := ParseKey[GuildConfig]("g", result.Records)
	if err != nil {
		return config.Guild{}, fmt.Errorf("fetch guild %s: %w", id, err)
	}
	if !ok {
		return config.DefaultGuild(id), nil
	}
	return node.Guild()
}

func (s *GuildStore) StoreGuild(ctx context.Context, g config.Guild) error {
	stmt, err := Merge("g", GuildConfig{Id: g.GuildID.String()}).Set("g", NewGuildConfig(g)).Build()
	if err != nil {
		return fmt.Errorf("store guild %s: %w", g.GuildID, err)
	}
	return s.session.Transaction(ctx, func(write Write) error {
		return write(stmt)
	})
}

var _ config.Store = (*GuildStore)(nil)
