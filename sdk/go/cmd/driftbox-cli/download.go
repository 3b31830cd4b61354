package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	serverURL, token := commonFlags(fs)
	output := fs.String("o", "", "output path (defaults to the shared filename)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: driftbox-cli download [flags] <file-id>")
	}
	fileID := fs.Arg(0)

	client, err := newClient(*serverURL, *token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	path := *output
	if path == "" {
		info, err := client.Info(ctx, fileID)
		if err != nil {
			return err
		}
		path = info.Filename
	}

	if path == "-" {
		_, err := client.DownloadTo(ctx, fileID, os.Stdout)
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	n, err := client.DownloadTo(ctx, fileID, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return err
	}

	fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, path)
	return nil
}
