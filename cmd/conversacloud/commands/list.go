package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kadimisettimanoharreddy/conversacloud/internal/config"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all provisioning requests and their status",
	RunE:  runList,
}

func init() {
	listCmd.Flags().String("user-email", "", "Only show requests for one user")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	// Ensure database directory exists
	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	userEmail, _ := cmd.Flags().GetString("user-email")

	var requests []*db.Request
	if userEmail != "" {
		requests, err = repo.ListByUser(userEmail)
	} else {
		requests, err = repo.ListRequests()
	}
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(requests) == 0 {
		fmt.Println("No requests found")
		return nil
	}

	fmt.Printf("%-36s %-28s %-6s %-12s %-12s %-6s %-20s %-20s\n",
		"IDENTIFIER", "USER", "ENV", "TYPE", "STATUS", "PR", "INSTANCE", "CREATED")
	fmt.Println("----------------------------------------------------------------------------------------------------------------------------------------------")

	for _, req := range requests {
		prStr := "-"
		if req.PRNumber != 0 {
			prStr = fmt.Sprintf("#%d", req.PRNumber)
		}

		instance := "-"
		if req.Status == db.StatusDeployed {
			if state, err := repo.GetDeliveryState(req.RequestIdentifier); err == nil && state != nil {
				if id := state.ResourceIDs["instance_id"]; id != "" {
					instance = id
				}
			}
		}

		fmt.Printf("%-36s %-28s %-6s %-12s %-12s %-6s %-20s %-20s\n",
			req.RequestIdentifier, req.UserEmail, req.Environment,
			req.Parameters.InstanceType, req.Status, prStr, instance,
			req.CreatedAt)
	}

	return nil
}
