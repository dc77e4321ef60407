// cmd/rulecheck/main.go

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"rgehrsitz/assist/internal/preprocessor"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run lints one rule definition file. It returns 1 when any record was
// rejected, or when -strict is set and any rule has warnings.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rulecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	strict := fs.Bool("strict", false, "treat rule warnings as errors")
	quiet := fs.Bool("quiet", false, "print problems only")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: rulecheck [-strict] [-quiet] <suggestions.tsv>")
		return 2
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).Level(zerolog.ErrorLevel)

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	parsed, recordErrs, err := preprocessor.ParseRules(data)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return 1
	}

	seen := make(map[string]bool, len(parsed))
	warnings := 0
	for _, r := range parsed {
		if seen[r.ID] {
			fmt.Fprintf(stdout, "%s: warning: duplicate id %q, only the first is used\n", path, r.ID)
			warnings++
			continue
		}
		seen[r.ID] = true
		if err := preprocessor.ValidateRule(r); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(stdout, "%s: warning: %s\n", path, line)
			}
			warnings++
		}
	}
	for _, re := range recordErrs {
		fmt.Fprintf(stdout, "%s: error: %v\n", path, re)
	}

	optimized := preprocessor.OptimizeRules(parsed)
	if !*quiet {
		for i, r := range optimized {
			fmt.Fprintf(stdout, "%3d  %-24s %s\n", i+1, r.ID, strings.Join(r.ConditionTokens(), " "))
		}
	}
	fmt.Fprintf(stdout, "%d rules, %d rejected records, %d warnings\n", len(optimized), len(recordErrs), warnings)

	if len(recordErrs) > 0 || (*strict && warnings > 0) {
		return 1
	}
	return 0
}
