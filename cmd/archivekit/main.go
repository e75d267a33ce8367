// Command archivekit exercises the archivekit storage drivers from the shell.
//
// Usage:
//
//	archivekit <command> [options]
//
// Commands:
//
//	backends  List storage backends with tier, availability and free space
//	store     Store a file and print its handle
//	retrieve  Restore the file referenced by a handle
//	delete    Delete the file referenced by a handle
//	verify    Check stored content against the handle checksum
//	hash      Print the SHA-256 of a local file
//
// Examples:
//
//	archivekit --config archivekit.toml store backup.mbz --job 42 --path 2025/course7 --out handle.json
//	archivekit --config archivekit.toml verify handle.json
//	archivekit --config archivekit.toml retrieve handle.json --dest /tmp/restore
//	archivekit --config archivekit.toml delete handle.json --strict
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
