// Command skiff runs JavaScript files through the typed-AST evaluator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/robertkrimen/otto"
	"github.com/spf13/cobra"

	"github.com/skiffjs/skiff"
	"github.com/skiffjs/skiff/syntax"
)

var (
	flagStrict   bool
	flagShowAST  bool
	flagLegacy   bool
	flagTimeout  time.Duration
	flagPrintVal bool
)

func main() {
	root := &cobra.Command{
		Use:           "skiff",
		Short:         "skiff is a small JavaScript engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := &cobra.Command{
		Use:   "run <file>",
		Short: "Parse and evaluate a script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
	run.Flags().BoolVar(&flagStrict, "strict", false, "evaluate in strict mode")
	run.Flags().BoolVar(&flagShowAST, "show-ast", false, "print the typed AST before evaluating")
	run.Flags().BoolVar(&flagLegacy, "legacy-fallback", false, "re-run through the legacy engine when the evaluator rejects the tree")
	run.Flags().DurationVar(&flagTimeout, "timeout", 0, "cancel evaluation after this duration")
	run.Flags().BoolVar(&flagPrintVal, "print", false, "print the completion value")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		fail(err)
	}
}

func runFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src := syntax.StripShebang(string(raw))

	prog, err := syntax.Parse(path, src)
	if err != nil {
		if flagLegacy {
			log.Printf("frontend rejected %s, falling back to the legacy engine: %v", path, err)
			return runLegacy(path, src)
		}
		return err
	}

	if flagShowAST {
		syntax.PrintAST(os.Stdout, prog)
	}

	goctx := context.Background()
	if flagTimeout > 0 {
		var cancel context.CancelFunc
		goctx, cancel = context.WithTimeout(goctx, flagTimeout)
		defer cancel()
	}

	realm := skiff.NewRealm()
	v, err := skiff.EvaluateProgram(prog, nil, realm, goctx, skiff.KindScript, flagStrict)
	if err != nil {
		var unsupported *skiff.UnsupportedNodeError
		if flagLegacy && errors.As(err, &unsupported) {
			log.Printf("evaluator rejected %s, falling back to the legacy engine: %v", path, err)
			return runLegacy(path, src)
		}
		return err
	}

	if flagPrintVal {
		fmt.Println(skiff.InspectValue(v))
	}
	return nil
}

// runLegacy evaluates through otto, the engine the frontend is built
// on. It covers scripts this evaluator cannot, at legacy semantics.
func runLegacy(path, src string) error {
	vm := otto.New()
	_, err := vm.Run(src)
	if err != nil {
		return fmt.Errorf("legacy engine: %w", err)
	}
	return nil
}

func fail(err error) {
	msg := err.Error()
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(1)
}
