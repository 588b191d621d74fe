package postgres

import "testing"

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"placeholders kept", "SELECT id FROM accounts WHERE id = $1 AND org_id = $12", "SELECT id FROM accounts WHERE id = $1 AND org_id = $12"},
		{"string literal", "SELECT 1 FROM payees WHERE name = 'Acme'", "SELECT ? FROM payees WHERE name = '?'"},
		{"escaped quote", "SELECT * FROM t WHERE a = 'O''Brien'", "SELECT * FROM t WHERE a = '?'"},
		{"numbers", "SELECT * FROM t LIMIT 10 OFFSET 2.5", "SELECT * FROM t LIMIT ? OFFSET ?"},
		{"identifiers with digits", "SELECT col1 FROM t2", "SELECT col1 FROM t2"},
		{"whitespace collapsed", "SELECT id\n\t\tFROM t", "SELECT id FROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeQuery(tt.query); got != tt.want {
				t.Errorf("sanitizeQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSQLVerb(t *testing.T) {
	tests := map[string]string{
		"select 1":                        "SELECT",
		"\n\t\tINSERT INTO t VALUES ($1)": "INSERT",
		"UPDATE\n\tt SET a = 1":           "UPDATE",
		"COMMIT":                          "COMMIT",
	}
	for query, want := range tests {
		if got := extractSQLVerb(query); got != want {
			t.Errorf("extractSQLVerb(%q) = %q, want %q", query, got, want)
		}
	}
}
