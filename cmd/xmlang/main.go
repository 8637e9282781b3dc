// Command xmlang compiles xmlang source files to lmx bytecode images. It
// does argument parsing and file I/O only; every bit of compilation logic
// lives in pkgs/compiler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nyyakko/xmlang/pkgs/compiler"
	"github.com/nyyakko/xmlang/pkgs/dump"
)

// Build-time variables, settable via ldflags.
var (
	Version   string = "dev"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
)

var (
	sourcePath string
	outputStem string
	dumpTarget string
	archName   string
	dialectSet = newDialectFlag()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xmlang -f <file> [flags]",
	Short: "Compile xmlang source to a kubo-VM bytecode image",
	Long: `xmlang compiles xmlang's XML-syntax source language down to a fixed-width
bytecode image for the kubo stack VM. Give it a source file with -f; it
writes <output>.lmx by default, or prints a --dump view instead of
writing a file.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runCompile,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version, build time, and git commit information for xmlang.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xmlang %s\n", Version)
		fmt.Printf("Built: %s\n", BuildTime)
		fmt.Printf("Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&sourcePath, "file", "f", "", "path to the xmlang source file to compile (required)")
	rootCmd.Flags().StringVarP(&outputStem, "output", "o", "out", "output file stem; written as <stem>.lmx")
	rootCmd.Flags().StringVarP(&dumpTarget, "dump", "d", "", "print a debug view instead of writing an image: ast, tokens, or fingerprint")
	rootCmd.Flags().StringVar(&archName, "arch", "lmx", "target architecture (only lmx is supported)")
	rootCmd.Flags().Var(dialectSet, "dialect", `keyword dialect: "classic", "full", or a path to a YAML dialect file`)

	rootCmd.AddCommand(versionCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	if archName != "lmx" {
		return fmt.Errorf("unsupported target architecture %q: only \"lmx\" is supported", archName)
	}
	if sourcePath == "" {
		return fmt.Errorf("missing required flag --file")
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("error reading file %s: %w", sourcePath, err)
	}

	stage := compiler.StageAssemble
	switch dumpTarget {
	case "tokens":
		stage = compiler.StageLex
	case "ast":
		stage = compiler.StageParse
	case "", "fingerprint":
		stage = compiler.StageAssemble
	default:
		return fmt.Errorf("unknown dump target %q: expected ast, tokens, or fingerprint", dumpTarget)
	}

	outcome, err := compiler.Run(sourcePath, source, dialectSet.set, stage)
	if err != nil {
		return err
	}

	switch dumpTarget {
	case "tokens":
		encoded, err := dump.Tokens(outcome.Tokens)
		if err != nil {
			return fmt.Errorf("error dumping tokens: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	case "ast":
		encoded, err := dump.AST(outcome.Program)
		if err != nil {
			return fmt.Errorf("error dumping ast: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	case "fingerprint":
		fmt.Println(outcome.Fingerprint)
		return nil
	}

	outputPath := outputStem + ".lmx"
	if err := compiler.WriteImage(outputPath, outcome.Image); err != nil {
		return err
	}

	fmt.Printf("xmlang: wrote %s (%d bytes, blake2b %s)\n", outputPath, len(outcome.Image), outcome.Fingerprint)
	return nil
}
