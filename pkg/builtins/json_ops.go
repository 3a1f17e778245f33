package builtins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// fromJSON s → value
func primFromJSON(args []*value.Thunk) (value.Value, error) {
	s, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "fromJSON: %s", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "fromJSON: trailing data after JSON value")
	}
	return fromRaw(raw)
}

func fromRaw(raw any) (value.Value, error) {
	switch x := raw.(type) {
	case nil:
		return value.Null{}, nil
	case bool:
		return value.Bool(x), nil
	case string:
		return value.String(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return value.Int(i), nil
		}
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return nil, diagnostics.Errorf(diagnostics.EArgs, noSpan, "fromJSON: invalid number %s", x)
		}
		return value.Float(f), nil
	case []any:
		elems := make([]*value.Thunk, len(x))
		for i, el := range x {
			v, err := fromRaw(el)
			if err != nil {
				return nil, err
			}
			elems[i] = value.Forced(v)
		}
		return &value.List{Elems: elems}, nil
	case map[string]any:
		m := make(map[string]*value.Thunk, len(x))
		for k, el := range x {
			v, err := fromRaw(el)
			if err != nil {
				return nil, err
			}
			m[k] = value.Forced(v)
		}
		return value.NewAttrs(m), nil
	}
	return nil, fmt.Errorf("fromJSON: unexpected %T", raw)
}

// toJSON x → string
func primToJSON(args []*value.Thunk) (value.Value, error) {
	v, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	b, err := formatter.JSON(v)
	if err != nil {
		return nil, err
	}
	return value.String(b), nil
}
