package parser

// cellIntern deduplicates repeated cell values while a file is read.
// Categorical columns (regions, statuses, product names) repeat the same
// handful of strings across every row, so sharing one copy keeps a
// 100k-row table well below its raw size.
type cellIntern struct {
	pool  map[string]string
	limit int
}

// MaxInternPoolSize stops interning once a file has this many distinct
// values; high-cardinality columns gain nothing from the pool.
const MaxInternPoolSize = 100000

func newCellIntern() *cellIntern {
	return &cellIntern{pool: make(map[string]string, 1024), limit: MaxInternPoolSize}
}

// Intern returns the pooled copy of s, storing it if there is room.
func (ci *cellIntern) Intern(s string) string {
	if pooled, ok := ci.pool[s]; ok {
		return pooled
	}
	if len(ci.pool) >= ci.limit {
		return s
	}
	ci.pool[s] = s
	return s
}

// InternRecord replaces every cell of record with its pooled copy.
func (ci *cellIntern) InternRecord(record []string) []string {
	for i, cell := range record {
		record[i] = ci.Intern(cell)
	}
	return record
}

// Len returns the number of distinct pooled values.
func (ci *cellIntern) Len() int {
	return len(ci.pool)
}
