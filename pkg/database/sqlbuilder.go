package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// UpsertBuilder is a PostgreSQL insert with ON CONFLICT support, which
// go-sqlbuilder does not model natively.
type UpsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewUpsert(table string) *UpsertBuilder {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	return &UpsertBuilder{ib}
}

// OnConflictUpdate appends a DO UPDATE clause keyed on the given columns and
// returns the builder for its SET list.
func (b *UpsertBuilder) OnConflictUpdate(keys ...string) *sqlbuilder.UpdateBuilder {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(keys, ", "), b.Var(ub)))
	return ub
}

func (b *UpsertBuilder) OnConflictDoNothing() {
	b.SQL("ON CONFLICT DO NOTHING")
}

// Excluded references the incoming row inside a DO UPDATE SET list.
func Excluded(column string) any {
	return sqlbuilder.Raw("EXCLUDED." + column)
}
