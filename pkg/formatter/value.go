package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ConnorBaker/nix-sub005/pkg/ast"
	"github.com/ConnorBaker/nix-sub005/pkg/diagnostics"
	"github.com/ConnorBaker/nix-sub005/pkg/value"
)

// OutputFormat selects how Render prints a value.
type OutputFormat string

const (
	FormatNix  OutputFormat = "nix"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatNix, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatNix, nil
	}
	return "", fmt.Errorf("unknown output format %q (want nix, json or yaml)", s)
}

// Render forces v completely and prints it in the given format.
func Render(v value.Value, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return JSON(v)
	case FormatYAML:
		return YAML(v)
	}
	return Nix(v)
}

// Nix prints v in Nix syntax, forcing every nested value. Structures
// already being printed further up are shown as «repeated».
func Nix(v value.Value) (string, error) {
	var b strings.Builder
	p := printer{out: &b, active: map[any]bool{}}
	if err := p.print(v); err != nil {
		return "", err
	}
	return b.String(), nil
}

type printer struct {
	out    *strings.Builder
	active map[any]bool
}

func (p *printer) print(v value.Value) error {
	switch x := v.(type) {
	case value.Int:
		p.out.WriteString(strconv.FormatInt(int64(x), 10))
	case value.Float:
		p.out.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case value.Bool:
		p.out.WriteString(strconv.FormatBool(bool(x)))
	case value.String:
		p.out.WriteString(quote(string(x)))
	case value.Path:
		p.out.WriteString(string(x))
	case value.Null:
		p.out.WriteString("null")
	case *value.Lambda:
		if x.Primop {
			p.out.WriteString("<PRIMOP>")
		} else {
			p.out.WriteString("<LAMBDA>")
		}
	case *value.List:
		if p.active[x] {
			p.out.WriteString("«repeated»")
			return nil
		}
		if len(x.Elems) == 0 {
			p.out.WriteString("[ ]")
			return nil
		}
		p.active[x] = true
		defer delete(p.active, x)
		p.out.WriteString("[ ")
		for _, t := range x.Elems {
			if err := p.thunk(t); err != nil {
				return err
			}
			p.out.WriteByte(' ')
		}
		p.out.WriteByte(']')
	case *value.Attrs:
		if p.active[x] {
			p.out.WriteString("«repeated»")
			return nil
		}
		if x.Len() == 0 {
			p.out.WriteString("{ }")
			return nil
		}
		p.active[x] = true
		defer delete(p.active, x)
		p.out.WriteString("{ ")
		for _, name := range x.Names() {
			t, _ := x.Get(name)
			p.out.WriteString(attrKey(name))
			p.out.WriteString(" = ")
			if err := p.thunk(t); err != nil {
				return err
			}
			p.out.WriteString("; ")
		}
		p.out.WriteByte('}')
	default:
		return fmt.Errorf("cannot print value of type %T", v)
	}
	return nil
}

func (p *printer) thunk(t *value.Thunk) error {
	v, err := t.Force()
	if err != nil {
		return err
	}
	return p.print(v)
}

func quote(s string) string {
	return `"` + escapeString(s) + `"`
}

func attrKey(name string) string {
	if isIdent(name) {
		return name
	}
	return quote(name)
}

// JSON converts v to compact JSON with object keys in sorted order.
func JSON(v value.Value) (string, error) {
	plain, err := toPlain(v, map[any]bool{})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// YAML converts v to a YAML document.
func YAML(v value.Value) (string, error) {
	plain, err := toPlain(v, map[any]bool{})
	if err != nil {
		return "", err
	}
	out, err := yaml.Marshal(toYAMLNode(plain))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// toPlain forces v into plain Go data: maps, slices and scalars.
func toPlain(v value.Value, active map[any]bool) (any, error) {
	switch x := v.(type) {
	case value.Int:
		return int64(x), nil
	case value.Float:
		return float64(x), nil
	case value.Bool:
		return bool(x), nil
	case value.String:
		return string(x), nil
	case value.Path:
		return string(x), nil
	case value.Null:
		return nil, nil
	case *value.List:
		if active[x] {
			return nil, diagnostics.InfiniteRecursion()
		}
		active[x] = true
		defer delete(active, x)
		out := make([]any, 0, len(x.Elems))
		for _, t := range x.Elems {
			ev, err := t.Force()
			if err != nil {
				return nil, err
			}
			p, err := toPlain(ev, active)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case *value.Attrs:
		if active[x] {
			return nil, diagnostics.InfiniteRecursion()
		}
		if t, ok := x.Get("outPath"); ok {
			ev, err := t.Force()
			if err != nil {
				return nil, err
			}
			return toPlain(ev, active)
		}
		active[x] = true
		defer delete(active, x)
		out := make(map[string]any, x.Len())
		for _, name := range x.Names() {
			t, _ := x.Get(name)
			ev, err := t.Force()
			if err != nil {
				return nil, err
			}
			p, err := toPlain(ev, active)
			if err != nil {
				return nil, err
			}
			out[name] = p
		}
		return out, nil
	}
	return nil, diagnostics.Errorf(diagnostics.EType, ast.Span{}, "cannot convert %s to JSON", value.Describe(v))
}

// toYAMLNode builds a yaml.Node so mappings keep sorted key order.
func toYAMLNode(v any) *yaml.Node {
	switch x := v.(type) {
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toYAMLNode(x[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, el := range x {
			n.Content = append(n.Content, toYAMLNode(el))
		}
		return n
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: x}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(x)}
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(x, 10)}
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloatLiteral(x)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)}
}
