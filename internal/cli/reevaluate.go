package cli

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewReevaluateCmd asks a running server to re-drive a game that looks stuck.
func NewReevaluateCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "reevaluate <gameID>",
		Short: "Re-evaluate a stuck game on a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			client := &http.Client{Timeout: 10 * time.Second}
			url := fmt.Sprintf("%s/api/games/%d/reevaluate", addr, id)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("reevaluate game %d: %w", id, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("reevaluate game %d: %s: %s", id, resp.Status, body)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s", body)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the running server")
	return cmd
}
