package main

import (
	"errors"
	"flag"
	"os"

	driftbox "github.com/driftware/driftbox/sdk/go"
)

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (serverURL, token *string) {
	serverURL = fs.String("server", os.Getenv("DRIFTBOX_URL"), "server base URL")
	token = fs.String("token", os.Getenv("DRIFTBOX_TOKEN"), "session token")
	return serverURL, token
}

func newClient(serverURL, token string) (*driftbox.Client, error) {
	if serverURL == "" {
		return nil, errors.New("no server configured, pass -server or set DRIFTBOX_URL")
	}
	return driftbox.NewClient(driftbox.ClientConfig{
		BaseURL: serverURL,
		Token:   token,
	})
}
