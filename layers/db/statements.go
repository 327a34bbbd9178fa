package db

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnrenderable = errors.New("value cannot be rendered as cypher")

// Statement is a Cypher statement assembled clause by clause. The first
// rendering failure is kept and reported by Build.
type Statement struct {
	clauses []string
	err     error
}

func Match(key string, node any) *Statement {
	return new(Statement).node("MATCH", key, node)
}

func Merge(key string, node any) *Statement {
	return new(Statement).node("MERGE", key, node)
}

func (s *Statement) node(verb, key string, node any) *Statement {
	pattern := Cypher(key, node)
	if pattern == "" {
		return s.fail(fmt.Errorf("%s %s: %T: %w", verb, key, node, ErrUnrenderable))
	}
	s.clauses = append(s.clauses, verb+" "+pattern)
	return s
}

// Set replaces every property of key with the fields of props.
func (s *Statement) Set(key string, props any) *Statement {
	properties, err := ToProperties(props)
	if err != nil {
		return s.fail(fmt.Errorf("SET %s: %w", key, err))
	}
	s.clauses = append(s.clauses, "SET "+key+"="+properties)
	return s
}

func (s *Statement) Return(keys ...string) *Statement {
	s.clauses = append(s.clauses, "RETURN "+strings.Join(keys, ","))
	return s
}

func (s *Statement) fail(err error) *Statement {
	if s.err == nil {
		s.err = err
	}
	return s
}

func (s *Statement) Build() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.clauses, " "), nil
}
