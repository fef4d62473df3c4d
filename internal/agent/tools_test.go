package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csv-chat/backend/internal/models"
	"github.com/csv-chat/backend/internal/parser"
)

func loadStore(t *testing.T, files map[string]string) *parser.TableStore {
	t.Helper()
	store, err := parser.NewTableStore(parser.DefaultStoreOptions())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var tables []*models.Table
	for name, data := range files {
		table, err := parser.ParseTable(name, []byte(data), 0)
		require.NoError(t, err)
		tables = append(tables, table)
	}
	require.NoError(t, store.Load(context.Background(), tables))
	return store
}

func newKit(src TableSource) *toolKit {
	return &toolKit{src: src, maxQueryRows: 10, sampleRows: 2, logger: zap.NewNop(), verbose: true}
}

func toolNames(t *testing.T, tools []tool.BaseTool) []string {
	t.Helper()
	var names []string
	for _, tl := range tools {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	return names
}

func TestToolKit_Tools(t *testing.T) {
	kit := newKit(nil)
	assert.Equal(t, []string{ToolListTables, ToolDescribeTable, ToolRunSQL}, toolNames(t, kit.tools(true)))
	assert.Equal(t, []string{ToolListTables, ToolDescribeTable}, toolNames(t, kit.tools(false)))
}

func TestListTablesTool(t *testing.T) {
	store := loadStore(t, map[string]string{"sales.csv": "Region,Sales\nNorth,100\nSouth,250\n"})
	out, err := (&listTablesTool{newKit(store)}).InvokableRun(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, "- sales: file 'sales.csv', 2 rows, columns: Region (string), Sales (integer)\n", out)
}

func TestDescribeTableTool(t *testing.T) {
	store := loadStore(t, map[string]string{"faq.csv": "Question,Answer\nreturns?,30 days\nwarranty?,1 year\nshipping?,free\n"})
	tl := &describeTableTool{newKit(store)}

	out, err := tl.InvokableRun(context.Background(), `{"table":"faq"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "table faq (file 'faq.csv'), 3 rows")
	assert.Contains(t, out, `- "Answer" VARCHAR`)
	assert.Contains(t, out, "| returns? | 30 days |")
	assert.NotContains(t, out, "shipping?", "only the sample rows are shown")

	out, err = tl.InvokableRun(context.Background(), `{"table":"missing"}`)
	require.NoError(t, err, "tool failures are reported to the model, not returned")
	assert.True(t, strings.HasPrefix(out, "ERROR: unknown table"))

	out, err = tl.InvokableRun(context.Background(), `not json`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ERROR: invalid arguments"))
}

func TestRunSQLTool(t *testing.T) {
	store := loadStore(t, map[string]string{"sales.csv": "Region,Sales\nNorth,100\nSouth,250\n"})
	tl := &runSQLTool{newKit(store)}

	out, err := tl.InvokableRun(context.Background(), `{"sql":"SELECT SUM(\"Sales\") AS total FROM sales"}`)
	require.NoError(t, err)
	assert.Equal(t, "| total |\n| --- |\n| 350 |\n", out)

	out, err = tl.InvokableRun(context.Background(), `{"sql":"DELETE FROM sales"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ERROR: only a single read-only statement"))

	out, err = tl.InvokableRun(context.Background(), `{"sql":"SELECT nope FROM sales"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ERROR: "))
}
