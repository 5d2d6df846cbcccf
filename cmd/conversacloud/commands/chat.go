package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"github.com/kadimisettimanoharreddy/conversacloud/internal/config"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/catalog"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/conversation"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/deploy"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/dispatch"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/extract"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/gitops"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/notify"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/tfvars"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive provisioning conversation",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("user-email", "", "Requesting user's email")
	chatCmd.Flags().String("user-name", "", "Requesting user's display name")
	chatCmd.Flags().String("department", "", "Requesting user's department")
	chatCmd.Flags().String("manager-email", "", "Manager email for environment approvals")
	chatCmd.Flags().StringSlice("env-access", nil, "Explicitly granted environments (e.g. prod)")
	chatCmd.MarkFlagRequired("user-email")
	chatCmd.MarkFlagRequired("department")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.WorkDir); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	policyEngine, err := loadPolicyEngine(cfg)
	if err != nil {
		return err
	}

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	generator := tfvars.NewGenerator(cfg.WorkDir)
	publisher := gitops.NewPublisher(generator, cfg.GitHubToken, cfg.RepoOwner, cfg.RepoName, cfg.BaseBranch, cfg.GitTimeout)

	hub := notify.NewHub()
	events := notify.NewEventPublisher(cfg.EventWebhookURL, cfg.APIToken)
	notifier := notify.NewNotifier(repo, hub, events)

	machine := deploy.NewMachine(repo, generator, publisher, notifier, cfg.FSMMaxRetries)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}
	queue := deploy.NewQueue(start)
	dispatcher := dispatch.NewDispatcher(repo, queue, policyEngine, cfg.CloudProvider)

	var chatClient extract.ChatCompleter
	if cfg.OpenAIAPIKey != "" {
		chatClient = extract.NewClient(cfg.OpenAIAPIKey, extract.WithBaseURL(cfg.OpenAIBaseURL))
	}
	extractor := extract.NewExtractor(chatClient, cfg.OpenAIModel, cfg.LLMTimeout)

	// Catalog is optional; without credentials the flow degrades to default
	// networking selections.
	var cat conversation.Catalog
	if aws, err := catalog.NewAWS(ctx, cfg.AWSRegion); err != nil {
		slog.Warn("catalog_unavailable", "error", err)
	} else {
		cat = aws
	}

	engine := conversation.NewEngine(policyEngine, extractor, dispatcher, notifier, cat)

	profile, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}

	// Live notifications interleave with the prompt.
	live, unregister := hub.Register(profile.Email)
	defer unregister()
	go func() {
		for msg := range live {
			fmt.Printf("\n[notification] %s: %s\n> ", msg.Title, msg.Message)
		}
	}()

	fmt.Printf("ConversaCloud chat. Signed in as %s (%s). Type 'exit' to quit.\n", profile.Email, profile.Department)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply := engine.HandleMessage(ctx, profile, line)
		fmt.Println(reply.Message)
		if len(reply.Buttons) > 0 {
			var options []string
			for _, b := range reply.Buttons {
				options = append(options, fmt.Sprintf("[%s]", b.Text))
			}
			fmt.Println(strings.Join(options, " "))
		}
		fmt.Print("> ")
	}

	return scanner.Err()
}

func profileFromFlags(cmd *cobra.Command) (policy.Profile, error) {
	email, _ := cmd.Flags().GetString("user-email")
	name, _ := cmd.Flags().GetString("user-name")
	department, _ := cmd.Flags().GetString("department")
	manager, _ := cmd.Flags().GetString("manager-email")
	envs, _ := cmd.Flags().GetStringSlice("env-access")

	if email == "" || department == "" {
		return policy.Profile{}, fmt.Errorf("user-email and department are required")
	}
	if name == "" {
		name = email
	}

	access := make(map[string]bool, len(envs))
	for _, env := range envs {
		access[strings.ToLower(strings.TrimSpace(env))] = true
	}

	return policy.Profile{
		Email:             email,
		Name:              name,
		Department:        department,
		ManagerEmail:      manager,
		EnvironmentAccess: access,
	}, nil
}
