package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	dwarfsynth "github.com/dwarfsynth/dwarfsynth"
	"github.com/dwarfsynth/dwarfsynth/log"
)

var (
	anvillPaths []string
	bsiPaths    []string
	ghidraPaths []string

	useAllBSI     bool
	scratchDir    string
	editorPath    string
	omitVariables bool
	omitFunctions bool
	omitSymbols   bool
	verbose       bool
	logLevel      string
)

func buildLogger() *log.Helper {
	level := log.LevelInfo
	if verbose {
		level = log.LevelDebug
	}
	if logLevel != "" {
		level = log.ParseLevel(logLevel)
	}
	logger := log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(level))
	return log.NewHelper(logger)
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := ""
	if len(args) > 1 {
		output = args[1]
	}

	// Ordering default per SPEC_FULL.md §5: CSV first, disassembler JSON
	// next, BSI JSON last.
	var sources []dwarfsynth.HintSource
	for _, p := range ghidraPaths {
		sources = append(sources, dwarfsynth.HintSource{Kind: dwarfsynth.HintSourceGhidra, Path: p})
	}
	for _, p := range anvillPaths {
		sources = append(sources, dwarfsynth.HintSource{Kind: dwarfsynth.HintSourceAnvill, Path: p})
	}
	for _, p := range bsiPaths {
		sources = append(sources, dwarfsynth.HintSource{Kind: dwarfsynth.HintSourceBSI, Path: p})
	}

	opts := dwarfsynth.Options{
		Input:            input,
		Output:           output,
		Sources:          sources,
		UseAllBSIEntries: useAllBSI,
		OmitFunctions:    omitFunctions,
		OmitVariables:    omitVariables,
		OmitSymbols:      omitSymbols,
		ScratchDir:       scratchDir,
		EditorPath:       editorPath,
		Logger:           buildLogger(),
	}

	return dwarfsynth.NewEngine(opts).Run()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "dwarfsynth INPUT [OUTPUT]",
		Short: "Synthesizes DWARF debug information from disassembler hint files",
		Long: "dwarfsynth augments an ELF executable with DWARF debug information\n" +
			"derived from Anvill-style, BSI-style, and Ghidra-style hint files.",
		Args: cobra.RangeArgs(1, 2),
		RunE: run,
	}

	rootCmd.Flags().StringArrayVarP(&anvillPaths, "anvill", "a", nil, "Anvill-style disassembler JSON hint file (repeatable)")
	rootCmd.Flags().StringArrayVarP(&bsiPaths, "bsi", "b", nil, "BSI-style source-match JSON hint file (repeatable)")
	rootCmd.Flags().StringArrayVarP(&ghidraPaths, "ghidra", "g", nil, "Ghidra-style CSV hint file (repeatable)")
	rootCmd.Flags().BoolVarP(&useAllBSI, "use-all", "u", false, "use BSI entries of any confidence")
	rootCmd.Flags().StringVarP(&scratchDir, "scratch-dir", "s", "", "directory for per-section blobs (default: a temp dir)")
	rootCmd.Flags().StringVarP(&editorPath, "editor", "x", "", "path to the external object editor (default: objcopy on PATH)")
	rootCmd.Flags().BoolVar(&omitVariables, "omit-variables", false, "do not emit variable entries")
	rootCmd.Flags().BoolVar(&omitFunctions, "omit-functions", false, "do not emit subprogram entries")
	rootCmd.Flags().BoolVar(&omitSymbols, "omit-symbols", false, "do not produce a symbol delta")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "explicit log level (debug, info, warn, error)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dwarfsynth version 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
