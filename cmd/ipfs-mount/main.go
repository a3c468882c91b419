// ipfs-mount exposes the IPFS namespace as a read-only drive.
//
// Usage:
//
//	ipfs-mount <drive> [--server URL] [--debug]
//	ipfs-mount <drive> --unmount
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// used to patch over os.Exit during tests
var osExit = os.Exit

func main() {
	osExit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, ue.Error())
		fmt.Fprintln(stderr, "Try 'ipfs-mount --help' for more information.")
		return 1
	}
	printErrorChain(stderr, err)
	return 1
}

// printErrorChain writes err and then each wrapped cause on its own line.
func printErrorChain(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(w, "caused by: %v\n", cause)
	}
}
