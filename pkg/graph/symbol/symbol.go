// Package symbol interns attribute and variable names.
package symbol

// Symbol is an interned name. Symbols are only meaningful within the Table
// that issued them.
type Symbol uint32

// Table maps names to symbols and back.
type Table struct {
	ids   map[string]Symbol
	names []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{ids: make(map[string]Symbol)}
}

// Intern returns the symbol for name, allocating one on first use.
func (t *Table) Intern(name string) Symbol {
	if s, ok := t.ids[name]; ok {
		return s
	}
	s := Symbol(len(t.names))
	t.ids[name] = s
	t.names = append(t.names, name)
	return s
}

// Lookup returns the symbol for name without allocating.
func (t *Table) Lookup(name string) (Symbol, bool) {
	s, ok := t.ids[name]
	return s, ok
}

// Name returns the name s was interned from.
func (t *Table) Name(s Symbol) string {
	return t.names[s]
}

// Len returns the number of interned names.
func (t *Table) Len() int {
	return len(t.names)
}
