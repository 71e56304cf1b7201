package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/value"
)

// validIdentifier matches table and column names. Only alphanumerics and
// underscore, starting with a letter or underscore, so names can pass
// into snapshot SQL and rendered output without quoting games.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a schema set as a whole. Foreign keys may reference
// any table in the set, including their own (self-referencing keys are
// how a row relates to another row of the same table).
//
// All problems are collected and returned together rather than failing
// on the first, so a schema author sees the complete picture in one run.
func Validate(tables []Table) []error {
	var errs []error
	byName := map[string]*Table{}

	for i := range tables {
		t := &tables[i]
		if _, dup := byName[t.Name]; dup {
			errs = append(errs, fmt.Errorf("table %s: duplicate table name", t.Name))
			continue
		}
		byName[t.Name] = t
		errs = append(errs, validateTable(t)...)
	}

	for i := range tables {
		errs = append(errs, validateForeignKeys(&tables[i], byName)...)
	}

	// Cascade cycles make delete/update propagation non-terminating, so
	// they are rejected at definition time rather than depth-capped at
	// runtime.
	errs = append(errs, analyzeCascadeCycles(tables)...)

	return errs
}

func validateTable(t *Table) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("table %s: %s", t.Name, fmt.Sprintf(format, args...)))
	}

	if !validIdentifier.MatchString(t.Name) {
		fail("invalid table name %q", t.Name)
	}
	if len(t.Columns) == 0 {
		fail("no columns")
	}

	seen := map[string]bool{}
	for _, c := range t.Columns {
		if !validIdentifier.MatchString(c.Name) {
			fail("invalid column name %q", c.Name)
		}
		if seen[c.Name] {
			fail("duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		if c.Type == value.KindNull {
			fail("column %q has no type", c.Name)
		}
		if c.Identity != nil {
			if c.Type != value.KindInt {
				fail("identity column %q must be integer, got %s", c.Name, c.Type)
			}
			if c.Identity.Step == 0 {
				fail("identity column %q has zero step", c.Name)
			}
		}
		if c.Default != nil {
			if _, err := value.CoerceAny(c.Default, c.Type); err != nil {
				fail("column %q default: %v", c.Name, err)
			}
		}
	}

	for _, name := range t.PrimaryKey {
		col, _, ok := t.Column(name)
		if !ok {
			fail("primary key names unknown column %q", name)
			continue
		}
		if col.Nullable {
			fail("primary key column %q must not be nullable", name)
		}
	}
	if dup := firstDuplicate(t.PrimaryKey); dup != "" {
		fail("primary key repeats column %q", dup)
	}

	for i, uk := range t.UniqueKeys {
		if len(uk) == 0 {
			fail("unique key %d is empty", i)
		}
		for _, name := range uk {
			if _, _, ok := t.Column(name); !ok {
				fail("unique key %d names unknown column %q", i, name)
			}
		}
		if dup := firstDuplicate(uk); dup != "" {
			fail("unique key %d repeats column %q", i, dup)
		}
	}

	checkNames := map[string]bool{}
	for _, check := range t.Checks {
		if check.Name == "" {
			fail("check constraint without a name")
		}
		if checkNames[check.Name] {
			fail("duplicate check constraint %q", check.Name)
		}
		checkNames[check.Name] = true

		compiled, err := check.Expr.Compile()
		if err != nil {
			fail("check %q: %v", check.Name, err)
			continue
		}
		for _, col := range expr.Columns(compiled) {
			if _, _, ok := t.Column(col); !ok {
				fail("check %q references unknown column %q", check.Name, col)
			}
		}
	}

	return errs
}

func validateForeignKeys(t *Table, byName map[string]*Table) []error {
	var errs []error
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		label := fk.Label(t.Name)
		fail := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("foreign key %s: %s", label, fmt.Sprintf(format, args...)))
		}

		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
			fail("local columns (%d) and referenced columns (%d) must match and be non-empty",
				len(fk.Columns), len(fk.RefColumns))
			continue
		}

		target, ok := byName[fk.RefTable]
		if !ok {
			fail("references unknown table %q", fk.RefTable)
			continue
		}
		if !target.KeyColumns(fk.RefColumns) {
			fail("referenced columns [%s] are not the primary key or a unique key of %s",
				strings.Join(fk.RefColumns, ","), fk.RefTable)
		}

		for j, name := range fk.Columns {
			local, _, ok := t.Column(name)
			if !ok {
				fail("names unknown local column %q", name)
				continue
			}
			ref, _, refOK := target.Column(fk.RefColumns[j])
			if refOK && local.Type != ref.Type {
				fail("column %q (%s) does not match referenced %s.%s (%s)",
					name, local.Type, fk.RefTable, fk.RefColumns[j], ref.Type)
			}
			if fk.DeleteAction() == SetNull || fk.UpdateAction() == SetNull {
				if refOK && !local.Nullable {
					fail("set_null action requires nullable column %q", name)
				}
			}
		}

		for _, action := range []RefAction{fk.DeleteAction(), fk.UpdateAction()} {
			switch action {
			case Restrict, Cascade, SetNull:
			default:
				fail("unknown referential action %q", action)
			}
		}
	}
	return errs
}

func firstDuplicate(names []string) string {
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
