package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Tool names exposed to the model.
const (
	ToolListTables    = "list_tables"
	ToolDescribeTable = "describe_table"
	ToolRunSQL        = "run_sql"
)

// toolKit holds what every table tool needs.
type toolKit struct {
	src          TableSource
	maxQueryRows int
	sampleRows   int
	verbose      bool
	logger       *zap.Logger
}

// tools returns the tools for one agent. run_sql is only offered when
// the model is allowed to execute its own queries.
func (k *toolKit) tools(allowExecution bool) []tool.BaseTool {
	tools := []tool.BaseTool{
		&listTablesTool{k},
		&describeTableTool{k},
	}
	if allowExecution {
		tools = append(tools, &runSQLTool{k})
	}
	return tools
}

// logCall records a tool invocation when verbose logging is on.
func (k *toolKit) logCall(name, args string, result string, err error) {
	if !k.verbose {
		return
	}
	fields := []zap.Field{
		zap.String("tool", name),
		zap.String("args", args),
		zap.Int("result_bytes", len(result)),
	}
	if err != nil {
		k.logger.Info("Agent tool call failed", append(fields, zap.Error(err))...)
		return
	}
	k.logger.Info("Agent tool call", fields...)
}

// toolError is fed back to the model so it can correct its next call.
func toolError(err error) string {
	return "ERROR: " + err.Error()
}

type listTablesTool struct{ *toolKit }

func (t *listTablesTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        ToolListTables,
		Desc:        "List the loaded tables with their source file, row count and columns.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *listTablesTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	var b strings.Builder
	tables := t.src.Tables()
	if len(tables) == 0 {
		b.WriteString("No tables are loaded.\n")
	}
	for _, tbl := range tables {
		cols := make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			cols[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "- %s: file '%s', %d rows, columns: %s\n",
			tbl.SQLName, tbl.Name, len(tbl.Rows), strings.Join(cols, ", "))
	}
	out := b.String()
	t.logCall(ToolListTables, args, out, nil)
	return out, nil
}

type describeTableTool struct{ *toolKit }

type describeTableArgs struct {
	Table string `json:"table"`
}

func (t *describeTableTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolDescribeTable,
		Desc: "Show a table's column names and SQL types, its row count and its first rows.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"table": {Type: schema.String, Desc: "Table name as returned by list_tables", Required: true},
		}),
	}, nil
}

func (t *describeTableTool) InvokableRun(ctx context.Context, args string, _ ...tool.Option) (string, error) {
	out, err := t.describe(ctx, args)
	t.logCall(ToolDescribeTable, args, out, err)
	if err != nil {
		return toolError(err), nil
	}
	return out, nil
}

func (t *describeTableTool) describe(ctx context.Context, args string) (string, error) {
	var in describeTableArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(in.Table) == "" {
		return "", fmt.Errorf("the table argument is required")
	}

	desc, err := t.src.Describe(ctx, in.Table)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "table %s (file '%s'), %d rows\ncolumns:\n", desc.SQLName, desc.FileName, desc.RowCount)
	for _, c := range desc.Columns {
		fmt.Fprintf(&b, "- %q %s\n", c.Name, c.DataType)
	}

	if t.sampleRows > 0 {
		sample, err := t.src.Query(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, desc.SQLName, t.sampleRows), t.sampleRows)
		if err != nil {
			return "", err
		}
		b.WriteString("first rows:\n")
		b.WriteString(sample.Markdown())
	}
	return b.String(), nil
}

type runSQLTool struct{ *toolKit }

type runSQLArgs struct {
	SQL string `json:"sql"`
}

func (t *runSQLTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolRunSQL,
		Desc: "Run one read-only DuckDB SQL statement (SELECT, WITH, DESCRIBE, SUMMARIZE) against the loaded tables " +
			"and return the result rows. Quote column names with double quotes. Use ILIKE for case-insensitive text search.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"sql": {Type: schema.String, Desc: "A single read-only SQL statement", Required: true},
		}),
	}, nil
}

func (t *runSQLTool) InvokableRun(ctx context.Context, args string, _ ...tool.Option) (string, error) {
	out, err := t.run(ctx, args)
	t.logCall(ToolRunSQL, args, out, err)
	if err != nil {
		return toolError(err), nil
	}
	return out, nil
}

func (t *runSQLTool) run(ctx context.Context, args string) (string, error) {
	var in runSQLArgs
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	res, err := t.src.Query(ctx, in.SQL, t.maxQueryRows)
	if err != nil {
		return "", err
	}
	return res.Markdown(), nil
}
