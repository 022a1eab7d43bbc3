package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/asaidimu/go-rulesengine/cmd/internal/config"
	cmdutil "github.com/asaidimu/go-rulesengine/cmd/util"
	"github.com/asaidimu/go-rulesengine/core/ruleset"
	"github.com/asaidimu/go-rulesengine/sqlite"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) storeCommand() *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage rule sets kept in the rule store",
	}
	storeCmd.AddCommand(&cobra.Command{
		Use:   "save <file>",
		Short: "Validate a rule set file and save it, replacing any set of the same name",
		Args:  cobra.ExactArgs(1),
		RunE:  toRunE(a.storeSaveMain),
	})
	storeCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored rule sets",
		Args:  cobra.NoArgs,
		RunE:  toRunE(a.storeListMain),
	})
	storeCmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored rule set as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  toRunE(a.storeShowMain),
	})
	storeCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored rule set",
		Args:  cobra.ExactArgs(1),
		RunE:  toRunE(a.storeDeleteMain),
	})
	return storeCmd
}

func (a *app) openStore(ctx context.Context) (*sqlite.RuleStore, func(), error) {
	path := config.DB()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open rule store %s: %w", path, err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("Failed to close rule store", zap.Error(err))
		}
	}
	store := sqlite.NewRuleStore(db, a.logger, nil)
	if err := store.Init(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

// withStore opens the store, runs fn and closes the store again.
func (a *app) withStore(fn func(ctx context.Context, store *sqlite.RuleStore) exitCode) exitCode {
	ctx := context.Background()
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	defer closeStore()
	return fn(ctx, store)
}

func (a *app) storeSaveMain(cmd *cobra.Command, args []string) exitCode {
	set, err := ruleset.LoadFile(args[0])
	if err != nil {
		a.printErrors(err)
		return exitCode{1}
	}
	// Conditions must compile before the set is stored.
	engine, err := a.newEngine()
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	if _, err := ruleset.Compile(engine, set); err != nil {
		a.printErrors(err)
		return exitCode{1}
	}

	return a.withStore(func(ctx context.Context, store *sqlite.RuleStore) exitCode {
		id, err := store.Save(ctx, set)
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		a.printf("%s\n", id)
		return exitCode{0}
	})
}

func (a *app) storeListMain(cmd *cobra.Command, args []string) exitCode {
	return a.withStore(func(ctx context.Context, store *sqlite.RuleStore) exitCode {
		records, err := store.List(ctx)
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		headers := []cmdutil.ColumnHeader{
			{ShortName: "id", FullName: "ID"},
			{ShortName: "name", FullName: "NAME"},
			{ShortName: "rules", FullName: "RULES"},
			{ShortName: "updated", FullName: "UPDATED"},
		}
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ID,
				rec.Name,
				strconv.Itoa(len(rec.Set.Rules)),
				rec.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		a.printf("%s", cmdutil.FormatTable(headers, rows))
		return exitCode{0}
	})
}

func (a *app) storeShowMain(cmd *cobra.Command, args []string) exitCode {
	return a.withStore(func(ctx context.Context, store *sqlite.RuleStore) exitCode {
		rec, err := store.GetByName(ctx, args[0])
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		body, err := rec.Set.Marshal()
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		a.printf("# id: %s\n%s", rec.ID, body)
		return exitCode{0}
	})
}

func (a *app) storeDeleteMain(cmd *cobra.Command, args []string) exitCode {
	return a.withStore(func(ctx context.Context, store *sqlite.RuleStore) exitCode {
		deleted, err := store.Delete(ctx, args[0])
		if err != nil {
			a.errPrintf("%v\n", err)
			return exitCode{1}
		}
		if !deleted {
			a.errPrintf("%v: %s\n", sqlite.ErrNotFound, args[0])
			return exitCode{1}
		}
		return exitCode{0}
	})
}
