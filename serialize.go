package jobexpect

import (
	"encoding/json"
	"fmt"
)

// GlobalIdentifier is implemented by argument values that are enqueued by
// reference rather than by value. Only the global ID crosses the
// serialization boundary; the value itself is reconstructed by a Resolver
// when the record is read back.
type GlobalIdentifier interface {
	GlobalID() string
}

// Resolver reconstructs a reference-typed argument from its global ID.
// Implementations must return the original value or an equivalent
// reconstructed instance.
type Resolver interface {
	ResolveGlobalID(id string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id string) (any, error)

// ResolveGlobalID calls f(id).
func (f ResolverFunc) ResolveGlobalID(id string) (any, error) {
	return f(id)
}

// gidKey marks a serialized reference-typed argument.
const gidKey = "_jobexpect_gid"

// argumentCodec carries job arguments across the enqueue boundary. Values
// round-trip through JSON, so readers always observe post-deserialization
// values (JSON numbers decode as float64), never the raw in-process ones.
type argumentCodec struct {
	resolver Resolver
}

// encode serializes arguments at enqueue time. A value implementing
// GlobalIdentifier is replaced by a reference envelope holding its global ID.
func (c *argumentCodec) encode(args []any) ([]byte, error) {
	if args == nil {
		return nil, nil
	}
	encoded := make([]any, len(args))
	for i, arg := range args {
		if ref, ok := arg.(GlobalIdentifier); ok {
			encoded[i] = map[string]string{gidKey: ref.GlobalID()}
			continue
		}
		encoded[i] = arg
	}
	payload, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("serialize arguments: %w", err)
	}
	return payload, nil
}

// decode deserializes a recorded payload, resolving reference envelopes back
// into values.
func (c *argumentCodec) decode(payload []byte) ([]any, error) {
	if payload == nil {
		return nil, nil
	}
	var raw []any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("deserialize arguments: %w", err)
	}
	args := make([]any, len(raw))
	for i, value := range raw {
		decoded, err := c.decodeArgument(value)
		if err != nil {
			return nil, err
		}
		args[i] = decoded
	}
	return args, nil
}

func (c *argumentCodec) decodeArgument(value any) (any, error) {
	envelope, ok := value.(map[string]any)
	if !ok || len(envelope) != 1 {
		return value, nil
	}
	id, ok := envelope[gidKey].(string)
	if !ok {
		return value, nil
	}
	if c.resolver == nil {
		return nil, fmt.Errorf("%w: %q (no resolver configured)", ErrUnresolvedReference, id)
	}
	resolved, err := c.resolver.ResolveGlobalID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnresolvedReference, id, err)
	}
	return resolved, nil
}
