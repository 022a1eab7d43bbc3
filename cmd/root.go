// Package cmd implements the rulesengine CLI using
// https://github.com/spf13/cobra.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-rulesengine/cmd/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cobra.Command.Execute() can only return errors, so each command reports
// its exit code by wrapping it in one. Commands print their own errors.
type exitCode struct {
	value int
}

func (e exitCode) Error() string {
	return ""
}

type commandMain func(cmd *cobra.Command, args []string) exitCode
type runE func(cmd *cobra.Command, args []string) error

func toRunE(main commandMain) runE {
	return func(cmd *cobra.Command, args []string) error {
		return main(cmd, args)
	}
}

// app carries the streams and shared state of one CLI invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
	logger     *zap.Logger
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) errPrintf(format string, args ...any) {
	fmt.Fprintf(a.errOut, format, args...)
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rulesengine",
		Short: "Compile and evaluate boolean rule expressions",
		Long: `Rules are boolean expressions over operator terms such as ">age:18" or
"~email:*@example.com", combined with & (and), | (or), ! (not) and
parentheses. Adjacent terms are joined with and.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetOutput(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Read config from this YAML file")
	flags.String(config.DBKey, config.DefaultDB, "Path of the rule store database")
	flags.String(config.LogLevelKey, config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	if err := viper.BindPFlag(config.DBKey, flags.Lookup(config.DBKey)); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag(config.LogLevelKey, flags.Lookup(config.LogLevelKey)); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(a.operatorsCommand())
	rootCmd.AddCommand(a.checkCommand())
	rootCmd.AddCommand(a.evalCommand())
	rootCmd.AddCommand(a.decideCommand())
	rootCmd.AddCommand(a.storeCommand())
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.ReadFrom(a.configFile); err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	logger, err := config.NewLogger(config.LogLevel(), a.errOut)
	if err != nil {
		a.errPrintf("%v\n", err)
		return exitCode{1}
	}
	a.logger = logger
	return nil
}

func (a *app) execute(args []string) int {
	rootCmd := a.rootCommand()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err == nil {
		return 0
	}

	code, ok := err.(exitCode)
	if !ok {
		// Cobra errors such as a malformed flag.
		a.errPrintf("Error: %v\n", err)
		return 1
	}
	return code.value
}

// Execute runs the CLI against the process arguments and returns the exit
// code.
func Execute() int {
	config.Init()
	a := &app{in: os.Stdin, out: os.Stdout, errOut: color.Error}
	return a.execute(os.Args[1:])
}
