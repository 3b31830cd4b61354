package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL, token := commonFlags(fs)
	fs.Parse(args)

	client, err := newClient(*serverURL, *token)
	if err != nil {
		return err
	}

	files, err := client.ListFiles(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tDOWNLOADS\tEXPIRES")
	for _, f := range files {
		expires := "never"
		if f.DeleteAt != nil {
			expires = f.DeleteAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			f.ID, f.Filename, f.FileSizeHuman, f.DownloadCount, expires)
	}
	return w.Flush()
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL, token := commonFlags(fs)
	fs.Parse(args)

	client, err := newClient(*serverURL, *token)
	if err != nil {
		return err
	}

	stats, err := client.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("files: %d\nusers: %d\nstorage: %s (%d bytes)\n",
		stats.TotalFiles, stats.TotalUsers, stats.TotalStorageHuman, stats.TotalStorageBytes)
	return nil
}
