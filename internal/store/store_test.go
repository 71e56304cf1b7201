package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/value"
)

func eq(col string, v value.Value) expr.Expr {
	return expr.Compare{Op: expr.OpEq, Left: expr.Column{Name: col}, Right: expr.Literal{Val: v}}
}

func customersTable() schema.Table {
	return schema.Table{
		Name: "customers",
		Columns: []schema.Column{
			{Name: "id", Type: value.KindInt, Identity: &schema.Identity{Seed: 1, Step: 1}},
			{Name: "name", Type: value.KindText},
			{Name: "tier", Type: value.KindText, Default: "standard"},
		},
		PrimaryKey: []string{"id"},
	}
}

func ordersTable(onDelete schema.RefAction) schema.Table {
	return schema.Table{
		Name: "orders",
		Columns: []schema.Column{
			{Name: "id", Type: value.KindInt},
			{Name: "customer_id", Type: value.KindInt, Nullable: true},
			{Name: "total", Type: value.KindDecimal},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKey{{
			Columns:    []string{"customer_id"},
			RefTable:   "customers",
			RefColumns: []string{"id"},
			OnDelete:   onDelete,
		}},
		Checks: []schema.Check{{
			Name: "total_non_negative",
			Expr: expr.Spec{Compare: &expr.CompareSpec{
				Op:    ">=",
				Left:  expr.Spec{Column: "total"},
				Right: expr.Spec{Literal: expr.LitOf(0)},
			}},
		}},
	}
}

func newShop(t *testing.T, onDelete schema.RefAction) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateTable(customersTable()))
	require.NoError(t, s.CreateTable(ordersTable(onDelete)))
	_, err := s.InsertAny("customers", [][]any{
		{nil, "ada", nil},
		{nil, "grace", "gold"},
	})
	require.NoError(t, err)
	_, err = s.InsertAny("orders", [][]any{
		{10, 1, value.MustDecimal("19.99")},
		{11, 1, value.MustDecimal("5.00")},
		{12, 2, 100},
	})
	require.NoError(t, err)
	return s
}

func TestInsertAssignsIdentityAndDefaults(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, rows, err := s.Snapshot("customers")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, value.Int(1), rows[0][0])
	assert.Equal(t, value.Int(2), rows[1][0])
	assert.Equal(t, value.Text("standard"), rows[0][2])
	assert.Equal(t, value.Text("gold"), rows[1][2])
}

func TestInsertExplicitValueSkipsIdentity(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("customers", [][]any{{50, "linus", nil}})
	require.NoError(t, err)

	// The counter did not advance past the explicit value; the next
	// generated id is still 3.
	_, err = s.InsertAny("customers", [][]any{{nil, "ken", nil}})
	require.NoError(t, err)
	_, rows, err := s.Snapshot("customers")
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), rows[3][0])
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("orders", [][]any{{10, nil, 1}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "orders", se.Table)
	assert.Equal(t, "pk(id)", se.Constraint)
}

func TestInsertRejectsNullInNonNullableColumn(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("orders", [][]any{{13, 1, nil}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "must not be null")
}

func TestInsertRejectsCheckViolation(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("orders", [][]any{{13, 1, -4}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "total_non_negative", se.Constraint)
}

func TestInsertRejectsMissingForeignParent(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("orders", [][]any{{13, 99, 1}})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
	assert.Contains(t, err.Error(), "not present in customers")
}

func TestInsertNullForeignKeyOptsOut(t *testing.T) {
	s := newShop(t, schema.Restrict)
	n, err := s.InsertAny("orders", [][]any{{13, nil, 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertRejectsUncoercibleValue(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.InsertAny("orders", [][]any{{13, "not an int", 1}})
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
}

func TestFailedBatchInsertIsAtomic(t *testing.T) {
	s := newShop(t, schema.Restrict)
	before, err := s.IdentityState("customers")
	require.NoError(t, err)

	// Second row duplicates the first row's generated-key candidate via
	// an explicit clash with an existing customer.
	_, err = s.InsertAny("customers", [][]any{
		{nil, "valid", nil},
		{1, "clash", nil},
	})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))

	count, err := s.RowCount("customers")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	after, err := s.IdentityState("customers")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteRestrictBlocksReferencedRow(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.DeleteRows("customers", eq("id", value.Int(1)))
	require.Error(t, err)
	assert.True(t, IsReferentialBlock(err))

	// Nothing moved.
	count, err := s.RowCount("customers")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = s.RowCount("orders")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeleteCascadeRemovesChildren(t *testing.T) {
	s := newShop(t, schema.Cascade)
	n, err := s.DeleteRows("customers", eq("id", value.Int(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, rows, err := s.Snapshot("orders")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Int(12), rows[0][0])
}

func TestDeleteCascadeIsTransitive(t *testing.T) {
	s := newShop(t, schema.Cascade)
	require.NoError(t, s.CreateTable(schema.Table{
		Name: "order_items",
		Columns: []schema.Column{
			{Name: "id", Type: value.KindInt},
			{Name: "order_id", Type: value.KindInt},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKey{{
			Columns:    []string{"order_id"},
			RefTable:   "orders",
			RefColumns: []string{"id"},
			OnDelete:   schema.Cascade,
		}},
	}))
	_, err := s.InsertAny("order_items", [][]any{{1, 10}, {2, 11}, {3, 12}})
	require.NoError(t, err)

	_, err = s.DeleteRows("customers", eq("id", value.Int(1)))
	require.NoError(t, err)

	_, rows, err := s.Snapshot("order_items")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Int(3), rows[0][0])
}

func TestDeleteSetNullClearsReferences(t *testing.T) {
	s := newShop(t, schema.SetNull)
	_, err := s.DeleteRows("customers", eq("id", value.Int(1)))
	require.NoError(t, err)

	_, rows, err := s.Snapshot("orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, value.Null{}, rows[0][1])
	assert.Equal(t, value.Null{}, rows[1][1])
	assert.Equal(t, value.Int(2), rows[2][1])
}

func TestUpdateCascadesKeyChange(t *testing.T) {
	s := New()
	cust := customersTable()
	require.NoError(t, s.CreateTable(cust))
	orders := ordersTable(schema.Restrict)
	orders.ForeignKeys[0].OnUpdate = schema.Cascade
	require.NoError(t, s.CreateTable(orders))
	_, err := s.InsertAny("customers", [][]any{{nil, "ada", nil}})
	require.NoError(t, err)
	_, err = s.InsertAny("orders", [][]any{{10, 1, 5}})
	require.NoError(t, err)

	n, err := s.UpdateAny("customers", eq("id", value.Int(1)), map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, rows, err := s.Snapshot("orders")
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), rows[0][1])
}

func TestUpdateRestrictBlocksReferencedKeyChange(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.UpdateAny("customers", eq("id", value.Int(1)), map[string]any{"id": 7})
	require.Error(t, err)
	assert.True(t, IsReferentialBlock(err))

	// The parent row is unchanged too.
	_, rows, err := s.Snapshot("customers")
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), rows[0][0])
}

func TestUpdateUnknownColumnIsTypeError(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.UpdateAny("orders", eq("id", value.Int(10)), map[string]any{"nope": 1})
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
}

func TestUpdateViolatingCheckIsAtomic(t *testing.T) {
	s := newShop(t, schema.Restrict)
	_, err := s.UpdateAny("orders", nil, map[string]any{"total": -1})
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))

	_, rows, err := s.Snapshot("orders")
	require.NoError(t, err)
	assert.Equal(t, value.MustDecimal("19.99"), rows[0][2])
}

func TestUpdateNoMatchIsNoop(t *testing.T) {
	s := newShop(t, schema.Restrict)
	journalBefore := len(s.Journal())
	n, err := s.UpdateAny("orders", eq("id", value.Int(999)), map[string]any{"total": 1})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, s.Journal(), journalBefore)
}

func TestTruncateResetsIdentityAndFiresActions(t *testing.T) {
	s := newShop(t, schema.Cascade)
	require.NoError(t, s.Truncate("customers"))

	for _, name := range []string{"customers", "orders"} {
		count, err := s.RowCount(name)
		require.NoError(t, err)
		assert.Zero(t, count, name)
	}

	_, err := s.InsertAny("customers", [][]any{{nil, "fresh", nil}})
	require.NoError(t, err)
	_, rows, err := s.Snapshot("customers")
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), rows[0][0])
}

func TestTruncateBlockedByRestrictReference(t *testing.T) {
	s := newShop(t, schema.Restrict)
	err := s.Truncate("customers")
	require.Error(t, err)
	assert.True(t, IsReferentialBlock(err))
}

func TestDropTableBlockedWhileReferenced(t *testing.T) {
	s := newShop(t, schema.Restrict)
	err := s.DropTable("customers")
	require.Error(t, err)
	assert.True(t, IsReferentialBlock(err))

	require.NoError(t, s.DropTable("orders"))
	require.NoError(t, s.DropTable("customers"))
	assert.Empty(t, s.Tables())
}

func TestCreateTableRejectsCascadeCycle(t *testing.T) {
	s := New()
	err := s.CreateTable(schema.Table{
		Name: "employees",
		Columns: []schema.Column{
			{Name: "id", Type: value.KindInt},
			{Name: "manager_id", Type: value.KindInt, Nullable: true},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []schema.ForeignKey{{
			Columns:    []string{"manager_id"},
			RefTable:   "employees",
			RefColumns: []string{"id"},
			OnDelete:   schema.Cascade,
		}},
	})
	require.Error(t, err)
	assert.Empty(t, s.Tables())
}

type seqTokens struct{ n int }

func (g *seqTokens) Generate() string {
	g.n++
	return fmt.Sprintf("tok-%d", g.n)
}

func TestJournalRecordsCommittedMutations(t *testing.T) {
	s := New(WithTokenGenerator(&seqTokens{}))
	require.NoError(t, s.CreateTable(customersTable()))
	_, err := s.InsertAny("customers", [][]any{{nil, "ada", nil}, {nil, "grace", nil}})
	require.NoError(t, err)
	_, err = s.DeleteRows("customers", eq("id", value.Int(2)))
	require.NoError(t, err)

	entries := s.Journal()
	require.Len(t, entries, 3)

	assert.Equal(t, JournalEntry{Seq: 1, Token: "tok-1", Op: "create_table", Table: "customers", Rows: 0}, entries[0])
	assert.Equal(t, JournalEntry{Seq: 2, Token: "tok-2", Op: "insert", Table: "customers", Rows: 2}, entries[1])
	assert.Equal(t, JournalEntry{Seq: 3, Token: "tok-3", Op: "delete", Table: "customers", Rows: 1}, entries[2])
}

func TestJournalCountsCascadeEffects(t *testing.T) {
	s := newShop(t, schema.Cascade)
	_, err := s.DeleteRows("customers", eq("id", value.Int(1)))
	require.NoError(t, err)

	entries := s.Journal()
	last := entries[len(entries)-1]
	assert.Equal(t, "delete", last.Op)
	assert.Equal(t, 3, last.Rows) // one customer plus two cascaded orders
}

func TestScannerKeepsPreMutationSnapshot(t *testing.T) {
	s := newShop(t, schema.Cascade)
	sc, err := s.Scan("orders")
	require.NoError(t, err)

	_, err = s.DeleteRows("customers", eq("id", value.Int(1)))
	require.NoError(t, err)

	assert.Equal(t, 3, sc.Len())
	seen := 0
	for sc.Next() {
		seen++
	}
	assert.Equal(t, 3, seen)

	fresh, err := s.Scan("orders")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Len())
}

func TestUnknownTableOperations(t *testing.T) {
	s := New()
	_, err := s.InsertAny("ghost", [][]any{{1}})
	assert.True(t, IsUnknownTable(err))
	_, err = s.Scan("ghost")
	assert.True(t, IsUnknownTable(err))
	assert.True(t, IsUnknownTable(s.Truncate("ghost")))
	assert.True(t, IsUnknownTable(s.DropTable("ghost")))
}
