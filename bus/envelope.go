package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/bitly/go-simplejson"
	"github.com/mitchellh/mapstructure"
)

var ErrMissingType = errors.New("bus: envelope has no type")

// Envelope is one bus message. Outbound payloads are typed values; inbound
// payloads decoded by Unmarshal are generic JSON maps until Decode is called.
type Envelope struct {
	Type          string
	CorrelationID string
	Error         string
	Payload       any
}

type wireEnvelope struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
	Payload       any    `json:"payload,omitempty"`
}

func Marshal(env Envelope) ([]byte, error) {
	if env.Type == "" {
		return nil, ErrMissingType
	}
	raw, err := json.Marshal(wireEnvelope(env))
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	return raw, nil
}

func Unmarshal(raw []byte) (Envelope, error) {
	js, err := simplejson.NewJson(raw)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	typ, err := js.Get("type").String()
	if err != nil || typ == "" {
		return Envelope{}, ErrMissingType
	}
	env := Envelope{
		Type:          typ,
		CorrelationID: js.Get("correlationId").MustString(),
		Error:         js.Get("error").MustString(),
	}
	if payload, ok := js.CheckGet("payload"); ok {
		env.Payload = payload.Interface()
	}
	return env, nil
}

// Decode converts the envelope payload into T. Typed payloads pass through;
// generic ones are decoded leniently so ids may be JSON strings or numbers.
func Decode[T any](env Envelope) (T, error) {
	var out T
	switch p := env.Payload.(type) {
	case nil:
		return out, nil
	case T:
		return p, nil
	case *T:
		if p != nil {
			out = *p
		}
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(env.Payload); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}
