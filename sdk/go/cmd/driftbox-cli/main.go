// Command driftbox-cli is a small client for a driftbox server, built
// on the Go SDK. Configuration comes from flags or the DRIFTBOX_URL and
// DRIFTBOX_TOKEN environment variables.
package main

import (
	"fmt"
	"os"
)

const usage = `driftbox-cli <command> [flags]

Commands:
  upload    Upload a file and print its share link
  download  Download a file by its ID
  list      List files owned by the authenticated account
  stats     Print public server statistics

Environment:
  DRIFTBOX_URL    Base URL of the server (e.g. https://share.example.com)
  DRIFTBOX_TOKEN  Session token for authenticated commands
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "upload":
		err = runUpload(os.Args[2:])
	case "download":
		err = runDownload(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
