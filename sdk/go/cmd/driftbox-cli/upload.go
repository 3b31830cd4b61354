package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	driftbox "github.com/driftware/driftbox/sdk/go"
)

func runUpload(args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL, token := commonFlags(fs)
	retention := fs.String("retention", driftbox.Retention30Days,
		"retention label (1hour, 6hours, 12hours, 1day, 2days, 7days, 30days, never)")
	name := fs.String("name", "", "override the shared filename")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: driftbox-cli upload [flags] <file>")
	}
	path := fs.Arg(0)

	client, err := newClient(*serverURL, *token)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	filename := *name
	if filename == "" {
		filename = filepath.Base(path)
	}

	result, err := client.Upload(context.Background(), f, driftbox.UploadOptions{
		Filename:    filename,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(filename)),
		Retention:   *retention,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.URL)
	return nil
}
