package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kadimisettimanoharreddy/conversacloud/internal/config"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List stored notifications for a user",
	RunE:  runNotifications,
}

func init() {
	notificationsCmd.Flags().String("user-email", "", "User whose notifications to list")
	notificationsCmd.MarkFlagRequired("user-email")
	rootCmd.AddCommand(notificationsCmd)
}

func runNotifications(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	userEmail, _ := cmd.Flags().GetString("user-email")

	notifications, err := repo.ListNotifications(userEmail)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(notifications) == 0 {
		fmt.Println("No notifications found")
		return nil
	}

	for _, n := range notifications {
		read := " "
		if n.IsRead {
			read = "*"
		}
		fmt.Printf("[%s] %s  %s\n    %s\n", read, n.CreatedAt, n.Title, n.Message)
	}

	return nil
}
