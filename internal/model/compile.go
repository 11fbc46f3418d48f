package model

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileError reports an invalid model declaration.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile builds a Registry from a CUE value holding an entityTypes struct.
// The value should already be unified with the model schema.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entityTypes: Thing: { ... }`)
//	reg, err := Compile(v)
func Compile(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("entityTypes"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "entityTypes", Message: "entityTypes is required", Pos: v.Pos()}
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	reg := newRegistry()
	for iter.Next() {
		et, err := compileEntityType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if err := reg.add(et); err != nil {
			return nil, &CompileError{Field: iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
	}
	if len(reg.types) == 0 {
		return nil, &CompileError{Field: "entityTypes", Message: "at least one entity type is required", Pos: typesVal.Pos()}
	}

	// Second pass: navigation targets can be declared in any order.
	for _, et := range reg.types {
		for _, np := range et.navProps {
			target, ok := reg.byName[lookupKey(np.TargetName)]
			if !ok {
				return nil, &CompileError{
					Field:   et.Name + "." + np.Name,
					Message: fmt.Sprintf("unknown navigation target %q", np.TargetName),
				}
			}
			np.Target = target
		}
	}

	return reg, nil
}

// LoadDir loads a CUE package from dir, unifies it with the model schema and
// compiles it.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances found in %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(instances[0])
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	return Compile(schema.Unify(v))
}

func compileEntityType(name string, v cue.Value) (*EntityType, error) {
	plural, err := stringField(v, "plural")
	if err != nil {
		return nil, err
	}
	table, err := stringField(v, "table")
	if err != nil {
		return nil, err
	}
	pkName, err := stringField(v, "primaryKey")
	if err != nil {
		return nil, err
	}

	et := NewEntityType(name, plural, table)

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	iter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := compileEntityProperty(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		et.AddEntityProperty(p)
	}

	pk, ok := et.index[lookupKey(pkName)].(*EntityProperty)
	if !ok || pk.Type != TypeID {
		return nil, &CompileError{
			Field:   name + ".primaryKey",
			Message: fmt.Sprintf("primary key %q must be a declared property of type Id", pkName),
			Pos:     v.Pos(),
		}
	}
	et.PrimaryKey = pk

	navVal := v.LookupPath(cue.ParsePath("navigation"))
	if navVal.Exists() {
		iter, err := navVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			np, err := compileNavigation(name, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			if _, dup := et.index[lookupKey(np.Name)]; dup {
				return nil, &CompileError{
					Field:   name + "." + np.Name,
					Message: "navigation property shadows an entity property",
					Pos:     iter.Value().Pos(),
				}
			}
			et.AddNavigationProperty(np)
		}
	}

	return et, nil
}

func compileEntityProperty(name string, v cue.Value) (*EntityProperty, error) {
	typ, err := stringField(v, "type")
	if err != nil {
		return nil, err
	}
	p := &EntityProperty{Name: name, Type: Type(typ)}

	column, err := stringField(v, "column")
	if err != nil {
		return nil, err
	}
	columns, err := stringList(v, "columns")
	if err != nil {
		return nil, err
	}

	switch {
	case p.Type == TypeTimeInterval && len(columns) == 2:
		p.Columns = columns
	case p.Type == TypeTimeInterval && len(columns) == 0:
		base := snakeCase(name)
		p.Columns = []string{base + "_start", base + "_end"}
	case p.Type == TypeTimeInterval:
		return nil, &CompileError{Field: name + ".columns", Message: "TimeInterval needs exactly two columns", Pos: v.Pos()}
	case len(columns) > 0:
		return nil, &CompileError{Field: name + ".columns", Message: "only TimeInterval properties take columns", Pos: v.Pos()}
	case column != "":
		p.Columns = []string{column}
	default:
		p.Columns = []string{snakeCase(name)}
	}

	return p, nil
}

func compileNavigation(owner, name string, v cue.Value) (*NavigationProperty, error) {
	np := &NavigationProperty{Name: name}
	var err error

	if np.TargetName, err = stringField(v, "target"); err != nil {
		return nil, err
	}
	if np.IsSet, err = boolField(v, "set"); err != nil {
		return nil, err
	}
	if np.AdminOnly, err = boolField(v, "adminOnly"); err != nil {
		return nil, err
	}
	if np.ForeignKey, err = stringField(v, "foreignKey"); err != nil {
		return nil, err
	}
	if np.MappedBy, err = stringField(v, "mappedBy"); err != nil {
		return nil, err
	}
	if np.Link.Table, err = stringField(v, "link.table"); err != nil {
		return nil, err
	}
	if np.Link.Source, err = stringField(v, "link.source"); err != nil {
		return nil, err
	}
	if np.Link.Target, err = stringField(v, "link.target"); err != nil {
		return nil, err
	}

	field := owner + "." + name
	switch {
	case !np.IsSet && np.ForeignKey == "":
		np.ForeignKey = snakeCase(name) + "_id"
	case !np.IsSet:
	case np.MappedBy != "" && np.Link.Table != "":
		return nil, &CompileError{Field: field, Message: "mappedBy and link are mutually exclusive", Pos: v.Pos()}
	case np.MappedBy == "" && np.Link.Table == "":
		return nil, &CompileError{Field: field, Message: "to-many navigation needs mappedBy or link", Pos: v.Pos()}
	case np.Link.Table != "" && (np.Link.Source == "" || np.Link.Target == ""):
		return nil, &CompileError{Field: field + ".link", Message: "link needs source and target columns", Pos: v.Pos()}
	}
	if !np.IsSet && (np.MappedBy != "" || np.Link.Table != "") {
		return nil, &CompileError{Field: field, Message: "to-one navigation takes foreignKey only", Pos: v.Pos()}
	}

	return np, nil
}

func stringField(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", &CompileError{Field: path, Message: path + " is required", Pos: v.Pos()}
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// snakeCase converts PhenomenonTime to phenomenon_time.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
