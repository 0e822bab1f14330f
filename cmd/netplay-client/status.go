package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var (
		addr   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running client's /status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := url.URL{Scheme: "http", Host: addr, Path: "/status", RawQuery: url.Values{"format": {format}}.Encode()}
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(u.String())
			if err != nil {
				return fmt.Errorf("query %s: %w", u.String(), err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("status %s: %s", resp.Status, b)
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9464", "Address of the client's metrics endpoint")
	cmd.Flags().StringVar(&format, "format", "json", "Encoding: json, cbor, msgpack, proto")

	return cmd
}
