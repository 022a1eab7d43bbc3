package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cmdutil "github.com/asaidimu/go-rulesengine/cmd/util"
	"github.com/asaidimu/go-rulesengine/core/document"
	"github.com/asaidimu/go-rulesengine/core/domain"
	"github.com/asaidimu/go-rulesengine/core/rules"
	"github.com/asaidimu/go-rulesengine/core/ruleset"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
	"go.uber.org/multierr"
)

func (a *app) operatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the standard operators",
		Args:  cobra.NoArgs,
		RunE:  toRunE(a.operatorsMain),
	}
}

func (a *app) operatorsMain(cmd *cobra.Command, args []string) exitCode {
	headers := []cmdutil.ColumnHeader{
		{ShortName: "op", FullName: "OP"},
		{ShortName: "syntax", FullName: "SYNTAX"},
		{ShortName: "description", FullName: "DESCRIPTION"},
	}
	var rows [][]string
	for _, info := range domain.Operators() {
		rows = append(rows, []string{string(info.Operator), info.Syntax, info.Description})
	}
	a.printf("%s", cmdutil.FormatTable(headers, rows))
	return exitCode{0}
}

func (a *app) checkCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check <rule>",
		Short: "Parse and compile a rule, printing its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE:  toRunE(a.checkMain),
	}
	checkCmd.Flags().Bool("tree", false, "Print the parsed rule as a tree")
	return checkCmd
}

func (a *app) checkMain(cmd *cobra.Command, args []string) exitCode {
	engine, err := a.newEngine()
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}

	node, err := engine.Parse(args[0])
	if err != nil {
		a.printErrors(err)
		return exitCode{1}
	}
	if err := engine.Check(args[0]); err != nil {
		a.printErrors(err)
		return exitCode{1}
	}

	if tree, _ := cmd.Flags().GetBool("tree"); tree {
		t := treeprint.New()
		fillTree(t, node)
		a.printf("%s", t.String())
		return exitCode{0}
	}

	ops := rules.Operators(node)
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	a.printf("%s\n", node)
	a.printf("operators: %s\n", strings.Join(names, " "))
	return exitCode{0}
}

func fillTree(t treeprint.Tree, node rules.Node) {
	var children []rules.Node
	switch n := node.(type) {
	case *rules.AndNode:
		t.SetValue("&")
		children = n.Operands
	case *rules.OrNode:
		t.SetValue("|")
		children = n.Operands
	case *rules.NotNode:
		t.SetValue("!")
		children = []rules.Node{n.Operand}
	default:
		t.SetValue(node.String())
	}
	for _, child := range children {
		// the stub value is replaced by the recursive call
		fillTree(t.AddBranch(""), child)
	}
}

func (a *app) evalCommand() *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "eval <rule>",
		Short: "Evaluate a rule against a JSON document",
		Long: `Evaluates the rule against the document and prints the result. Exits 0 when
the rule holds, 2 when it does not and 1 on error.`,
		Args: cobra.ExactArgs(1),
		RunE: toRunE(a.evalMain),
	}
	evalCmd.Flags().String("doc", "-", "JSON document file, - for stdin")
	return evalCmd
}

func (a *app) evalMain(cmd *cobra.Command, args []string) exitCode {
	docPath, _ := cmd.Flags().GetString("doc")
	doc, err := a.readDocument(docPath)
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	engine, err := a.newEngine()
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}

	ok, err := engine.Evaluate(context.Background(), args[0], doc)
	if err != nil {
		a.printErrors(err)
		return exitCode{1}
	}
	a.printf("%t\n", ok)
	if !ok {
		return exitCode{2}
	}
	return exitCode{0}
}

func (a *app) decideCommand() *cobra.Command {
	decideCmd := &cobra.Command{
		Use:   "decide",
		Short: "Run a rule set against a JSON document",
		Long: `Loads a rule set from a YAML file (--rules) or the rule store (--name), runs
it against the document and prints the decision as JSON or YAML. With --all
every matching rule is printed instead of the first. With --lines the document
input holds one JSON document per line; they are decided concurrently and the
results are printed as a list in input order.`,
		Args: cobra.NoArgs,
		RunE: toRunE(a.decideMain),
	}
	decideCmd.Flags().String("rules", "", "Rule set YAML file")
	decideCmd.Flags().String("name", "", "Name of a stored rule set")
	decideCmd.Flags().String("doc", "-", "JSON document file, - for stdin")
	decideCmd.Flags().Bool("all", false, "Print every matching rule")
	decideCmd.Flags().StringP("output", "o", cmdutil.JSON, "Output format (json or yaml)")
	decideCmd.Flags().Bool("lines", false, "Read one JSON document per line")
	decideCmd.Flags().Int("parallel", 4, "Documents decided at once with --lines")
	return decideCmd
}

func (a *app) decideMain(cmd *cobra.Command, args []string) exitCode {
	rulesPath, _ := cmd.Flags().GetString("rules")
	name, _ := cmd.Flags().GetString("name")
	docPath, _ := cmd.Flags().GetString("doc")
	all, _ := cmd.Flags().GetBool("all")
	format, _ := cmd.Flags().GetString("output")
	lines, _ := cmd.Flags().GetBool("lines")
	parallel, _ := cmd.Flags().GetInt("parallel")
	ctx := context.Background()

	if (rulesPath == "") == (name == "") {
		a.errPrintf("exactly one of --rules or --name is required\n")
		return exitCode{1}
	}
	marshaller, err := cmdutil.NewMarshaller(format)
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}

	var set *ruleset.RuleSet
	if rulesPath != "" {
		loaded, err := ruleset.LoadFile(rulesPath)
		if err != nil {
			a.printErrors(err)
			return exitCode{1}
		}
		set = loaded
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		defer closeStore()
		rec, err := store.GetByName(ctx, name)
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		set = rec.Set
	}

	var docs []*document.Document
	if lines {
		docs, err = a.readDocumentLines(docPath)
	} else {
		var doc *document.Document
		doc, err = a.readDocument(docPath)
		docs = []*document.Document{doc}
	}
	if err != nil {
		a.printErrors(err)
		return exitCode{1}
	}
	engine, err := a.newEngine()
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	compiled, err := ruleset.Compile(engine, set)
	if err != nil {
		a.printErrors(err)
		return exitCode{1}
	}

	decide := func(doc *document.Document) (any, error) {
		if !all {
			return compiled.Decide(ctx, doc)
		}
		matches, err := compiled.Matches(ctx, doc)
		if matches == nil {
			matches = []ruleset.Decision{}
		}
		return matches, err
	}

	results := make([]any, len(docs))
	errs := make([]error, len(docs))
	pool := cmdutil.NewPool(parallel)
	for i, doc := range docs {
		i, doc := i, doc
		pool.Submit(func() {
			defer pool.Done()
			results[i], errs[i] = decide(doc)
		})
	}
	pool.Finish()
	if err := multierr.Combine(errs...); err != nil {
		a.printErrors(err)
		return exitCode{1}
	}

	var result any = results
	if !lines {
		result = results[0]
	}
	out, err := marshaller.Marshal(result)
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	a.printf("%s", out)
	if !strings.HasSuffix(out, "\n") {
		a.printf("\n")
	}
	return exitCode{0}
}

func (a *app) newEngine() (*rules.Engine[domain.Doc], error) {
	return domain.NewEngine(rules.WithLogger(a.logger), rules.WithoutCache())
}

func (a *app) readInput(path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(a.in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return raw, nil
}

func (a *app) readDocument(path string) (*document.Document, error) {
	raw, err := a.readInput(path)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// readDocumentLines reads one JSON document per non-blank line. Every bad
// line is reported.
func (a *app) readDocumentLines(path string) ([]*document.Document, error) {
	raw, err := a.readInput(path)
	if err != nil {
		return nil, err
	}
	var (
		docs []*document.Document
		errs error
	)
	for i, line := range bytes.Split(raw, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		doc, err := document.FromJSON(line)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s:%d: %w", path, i+1, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func (a *app) printErrors(err error) {
	for _, e := range multierr.Errors(err) {
		a.errPrintf("%s\n", color.RedString("error: %v", e))
	}
}
