package hooks

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeOptions mirrors the teacher's tools/decode.Options, trimmed
// to the one knob (WeaklyTypedInput) this repo exercises.
type DecodeOptions struct {
	WeaklyTypedInput bool
}

func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{WeaklyTypedInput: true}
}

// DecodePayload decodes a dynamic map (an operation's Payload, or a
// webhook/RPC hook's free-form request body) into T, generalizing the
// teacher's DecodeStruct[T] off structpb.Struct onto a plain
// map[string]any so it needs no protobuf-generated types.
func DecodePayload[T any](m map[string]any, opts ...DecodeOptions) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("hooks: payload is nil")
	}
	cfg := DefaultDecodeOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}
	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
	}
	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("hooks: new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("hooks: decode payload: %w", err)
	}
	return &out, nil
}
