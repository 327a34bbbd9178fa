package db

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type Guild struct {
	Id     string `json:"id"`
	Prefix string `json:"prefix,omitempty"`
}

func TestStatementBuild(t *testing.T) {
	tests := []struct {
		name string
		stmt *Statement
		want string
	}{
		{name: "match return", stmt: Match("g", Guild{Id: "1"}).Return("g"), want: `MATCH (g:Guild {id: "1"}) RETURN g`},
		{name: "merge set", stmt: Merge("g", Guild{Id: "1"}).Set("g", Guild{Id: "1", Prefix: "!"}), want: `MERGE (g:Guild {id: "1"}) SET g={id: "1",prefix: "!"}`},
		{name: "return many", stmt: Match("g", Guild{Id: "2"}).Return("a", "b"), want: `MATCH (g:Guild {id: "2"}) RETURN a,b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatementKeepsFirstError(t *testing.T) {
	tests := []struct {
		name string
		stmt *Statement
		want string
	}{
		{name: "match", stmt: Match("t", make(chan int)).Return("t"), want: "MATCH t"},
		{name: "merge", stmt: Merge("t", map[string]int{"a": 1}), want: "MERGE t"},
		{name: "set", stmt: Merge("g", Guild{Id: "1"}).Set("g", make(chan int)).Set("h", nil), want: "SET g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.Build()
			require.Error(t, err)
			assert.Empty(t, got)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := Match("t", make(chan int)).Build()
	assert.ErrorIs(t, err, ErrUnrenderable)
}
