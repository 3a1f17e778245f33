package builtins

import (
	"github.com/go-logr/logr"

	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/formatter"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// throw msg
func primThrow(args []*value.Thunk) (value.Value, error) {
	msg, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	return nil, diagnostics.Errorf(diagnostics.EThrow, noSpan, "%s", msg)
}

// abort msg
func primAbort(args []*value.Thunk) (value.Value, error) {
	msg, err := forceString(args[0])
	if err != nil {
		return nil, err
	}
	return nil, diagnostics.Errorf(diagnostics.EAbort, noSpan, "evaluation aborted with the following error message: '%s'", msg)
}

// seq a b → b, after forcing a to weak head normal form
func primSeq(args []*value.Thunk) (value.Value, error) {
	if _, err := args[0].Force(); err != nil {
		return nil, err
	}
	return args[1].Force()
}

// deepSeq a b → b, after forcing a completely
func primDeepSeq(args []*value.Thunk) (value.Value, error) {
	a, err := args[0].Force()
	if err != nil {
		return nil, err
	}
	if err := value.ForceDeep(a); err != nil {
		return nil, err
	}
	return args[1].Force()
}

// trace msg b → b, logging msg
func primTrace(log logr.Logger) func([]*value.Thunk) (value.Value, error) {
	return func(args []*value.Thunk) (value.Value, error) {
		v, err := args[0].Force()
		if err != nil {
			return nil, err
		}
		msg, ok := v.(value.String)
		if !ok {
			s, err := formatter.Nix(v)
			if err != nil {
				return nil, err
			}
			msg = value.String(s)
		}
		log.Info("trace", "message", string(msg))
		return args[1].Force()
	}
}
