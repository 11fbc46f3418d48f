package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/staquery/internal/model"
)

// column is one column of a generated table.
type column struct {
	name       string
	sqlType    string
	references string
}

type table struct {
	name    string
	pk      []string
	columns []column
	indexes []string
}

func (t *table) add(c column) {
	for i, existing := range t.columns {
		if existing.name == c.name {
			if existing.references == "" {
				t.columns[i].references = c.references
			}
			return
		}
	}
	t.columns = append(t.columns, c)
}

func (t *table) index(col string) {
	if !slices.Contains(t.indexes, col) {
		t.indexes = append(t.indexes, col)
	}
}

func (t *table) ddl() []string {
	lines := make([]string, 0, len(t.columns)+1)
	for _, c := range t.columns {
		line := c.name + " " + c.sqlType
		if len(t.pk) == 1 && t.pk[0] == c.name {
			line += " PRIMARY KEY"
		}
		if c.references != "" {
			line += " REFERENCES " + c.references
		}
		lines = append(lines, line)
	}
	if len(t.pk) > 1 {
		lines = append(lines, "PRIMARY KEY ("+strings.Join(t.pk, ", ")+")")
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(lines, ",\n\t"))}
	for _, col := range t.indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", t.name, col, t.name, col))
	}
	return stmts
}

// sqlType maps an attribute type to its SQLite storage type.
func sqlType(t model.Type) string {
	switch t {
	case model.TypeID, model.TypeInteger, model.TypeBoolean, model.TypeDateTime, model.TypeTimeInterval:
		return "INTEGER"
	case model.TypeDouble:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Schema returns the DDL statements creating the tables of every entity
// type in reg, in declaration order. Link tables shared by both ends of a
// many-to-many relation are created once.
func Schema(reg *model.Registry) ([]string, error) {
	var order []string
	tables := map[string]*table{}
	get := func(name string) *table {
		t, ok := tables[name]
		if !ok {
			t = &table{name: name}
			tables[name] = t
			order = append(order, name)
		}
		return t
	}

	for _, et := range reg.EntityTypes() {
		if et.PrimaryKey == nil || len(et.PrimaryKey.Columns) != 1 {
			return nil, fmt.Errorf("entity type %s needs a single-column primary key", et.Name)
		}
		t := get(et.Table)
		t.pk = et.PrimaryKey.Columns
		for _, p := range et.EntityProperties() {
			for _, c := range p.Columns {
				t.add(column{name: c, sqlType: sqlType(p.Type)})
			}
		}
	}

	for _, et := range reg.EntityTypes() {
		for _, nav := range et.NavigationProperties() {
			target := nav.Target
			targetPK := target.PrimaryKey.Column()
			switch {
			case nav.ForeignKey != "":
				t := get(et.Table)
				t.add(column{name: nav.ForeignKey, sqlType: "INTEGER", references: target.Table + "(" + targetPK + ")"})
				t.index(nav.ForeignKey)
			case nav.MappedBy != "":
				t := get(target.Table)
				t.add(column{name: nav.MappedBy, sqlType: "INTEGER"})
				t.index(nav.MappedBy)
			case nav.Link.Table != "":
				t := get(nav.Link.Table)
				t.add(column{name: nav.Link.Source, sqlType: "INTEGER NOT NULL", references: et.Table + "(" + et.PrimaryKey.Column() + ")"})
				t.add(column{name: nav.Link.Target, sqlType: "INTEGER NOT NULL", references: target.Table + "(" + targetPK + ")"})
				if t.pk == nil {
					t.pk = []string{nav.Link.Source, nav.Link.Target}
				}
				t.index(nav.Link.Target)
			}
		}
	}

	var stmts []string
	for _, name := range order {
		stmts = append(stmts, tables[name].ddl()...)
	}
	return stmts, nil
}
