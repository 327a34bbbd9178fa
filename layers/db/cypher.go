package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/mitchellh/mapstructure"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"reflect"
	"slices"
	"strings"
)

var ErrNotNode = errors.New("value is not a node")

// Cypher renders val as a node pattern labelled with its type name and the
// names of embedded structs. It returns "" when val cannot be rendered.
func Cypher(key string, val any) string {
	cypherProperties, err := ToProperties(val)
	if err != nil {
		return ""
	}

	ifv := reflect.ValueOf(val)
	ift := reflect.TypeOf(val)
	if ift.Kind() != reflect.Struct {
		return ""
	}
	labels := strings.Builder{}

	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		if v.Kind() == reflect.Struct {
			labels.WriteString(":" + v.Type().Name())
		}
	}
	labels.WriteString(":" + ift.Name())
	return fmt.Sprintf("(%s%s %s)", key, labels.String(), cypherProperties)
}

// ToProperties renders the JSON fields of val as a Cypher property map.
// Empty strings, nulls and nested objects are left out.
func ToProperties(val any) (string, error) {
	if val == nil {
		return "", errors.New("val in ToProperties can't be nil")
	}

	m, err := toMap(val)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	stringBuilder := strings.Builder{}
	stringBuilder.WriteString("{")
	for _, key := range keys {
		property, ok := ToProperty(m[key])
		if !ok {
			continue
		}
		stringBuilder.WriteString(key + ": ")
		stringBuilder.WriteString(property)
	}
	cypherProperties := stringBuilder.String()
	if len(cypherProperties) == 1 {
		return "", nil
	}
	return cypherProperties[:len(cypherProperties)-1] + "}", nil
}

func toMap(in any) (map[string]any, error) {
	inrec, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", in, err)
	}
	var mp map[string]any
	decoder := json.NewDecoder(bytes.NewReader(inrec))
	decoder.UseNumber()
	if err := decoder.Decode(&mp); err != nil {
		return nil, fmt.Errorf("%T is not an object: %w", in, err)
	}
	return mp, nil
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// ToProperty renders one property value followed by a comma.
func ToProperty(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return `"` + quoter.Replace(v) + `",`, true
	case []any:
		builder := strings.Builder{}
		builder.WriteString("[")
		for _, element := range v {
			if property, ok := ToProperty(element); ok {
				builder.WriteString(property)
			}
		}
		property := strings.TrimSuffix(builder.String(), ",")
		return property + "],", true
	case map[string]any:
		return "", false
	default:
		return fmt.Sprintf(`%v,`, v), true
	}
}

// ParseKey decodes the node bound to key in the first record. It reports
// false when there is no record.
func ParseKey[T any](key string, records []*neo4j.Record) (T, bool, error) {
	var result T
	if len(records) == 0 {
		return result, false, nil
	}
	get, ok := records[0].Get(key)
	if !ok {
		return result, false, fmt.Errorf("invalid key %q", key)
	}
	node, ok := get.(neo4j.Node)
	if !ok {
		return result, false, fmt.Errorf("%s: %w", key, ErrNotNode)
	}
	result, err := parse[T](node.Props)
	if err != nil {
		return result, false, err
	}
	return result, true, nil
}

func parse[T any](props map[string]any) (T, error) {
	var result T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return result, err
	}
	if err := decoder.Decode(props); err != nil {
		return result, fmt.Errorf("decode node: %w", err)
	}
	return result, nil
}
