package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteQueryPostgres(t *testing.T) {
	got := rewriteQuery(DialectPostgres, `UPDATE keys SET server_id = ?, client_id = ? WHERE tg_id = ? AND email = ?`)
	assert.Equal(t, `UPDATE keys SET server_id = $1, client_id = $2 WHERE tg_id = $3 AND email = $4`, got)
}

func TestRewriteQuerySkipsQuotedLiterals(t *testing.T) {
	got := rewriteQuery(DialectPostgres, `SELECT * FROM t WHERE a = '?' AND b = ?`)
	assert.Equal(t, `SELECT * FROM t WHERE a = '?' AND b = $1`, got)
}

func TestRewriteQuerySQLiteUntouched(t *testing.T) {
	query := `SELECT * FROM keys WHERE email = ?`
	assert.Equal(t, query, rewriteQuery(DialectSQLite, query))
}

func TestRewriteQueryNoPlaceholders(t *testing.T) {
	query := `SELECT COUNT(*) FROM servers`
	assert.Equal(t, query, rewriteQuery(DialectPostgres, query))
}
