package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NksEBP/gc-agent/internal/ai"
	"github.com/NksEBP/gc-agent/internal/auth"
	"github.com/NksEBP/gc-agent/internal/calendar"
	"github.com/NksEBP/gc-agent/internal/logging"
	"github.com/NksEBP/gc-agent/internal/mail"
	"github.com/NksEBP/gc-agent/internal/notify"
	"github.com/NksEBP/gc-agent/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process unread inbox mail through the single-model workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(cmd.Context())
	},
}

var multiagentCmd = &cobra.Command{
	Use:   "multiagent",
	Short: "Process unread inbox mail with per-stage models and policy-grounded drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMulti(cmd.Context())
	},
}

// googleServices authorizes once and builds the mail and calendar services.
func googleServices(ctx context.Context) (*mail.Service, *calendar.Client, error) {
	client, err := auth.Client(ctx, cfg.CredentialsPath, cfg.TokenPath)
	if err != nil {
		return nil, nil, fmt.Errorf("authorization failed: %w", err)
	}
	mailSvc, err := mail.NewService(ctx, client)
	if err != nil {
		return nil, nil, err
	}
	calSvc, err := calendar.NewClient(ctx, client)
	if err != nil {
		return nil, nil, err
	}
	return mailSvc, calSvc, nil
}

func runSingle(ctx context.Context) error {
	log := logging.NewStdout()

	mailSvc, calSvc, err := googleServices(ctx)
	if err != nil {
		return err
	}
	llm := ai.NewClient(cfg.AIProvider, cfg.AIAPIKey, cfg.LLMModel, cfg.AIBaseURL)
	notifier := notify.New(cfg.SlackWebhookURL, cfg.EnableSlack)

	engine := workflow.NewEngine(mailSvc, calSvc, llm, notifier, log, cfg.UserTZ)

	emails, err := mailSvc.ListUnprocessed(cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("unable to fetch inbox: %w", err)
	}
	engine.Run(emails)
	return nil
}

func runMulti(ctx context.Context) error {
	log := logging.NewStdout()

	mailSvc, calSvc, err := googleServices(ctx)
	if err != nil {
		return err
	}

	base := ai.NewClient(cfg.AIProvider, cfg.AIAPIKey, cfg.LLMModel, cfg.AIBaseURL)
	calendarLLM := base.WithModel(cfg.CalendarModel)
	triageLLM := base.WithModel(cfg.TriageModel)
	draftLLM := base.WithModel(cfg.DraftModel)
	policies := ai.NewPolicyRetriever(base, cfg.PolicyDir, cfg.EmbeddingModel, cfg.RAGTopK)
	notifier := notify.New(cfg.SlackWebhookURL, cfg.EnableSlack)

	engine := workflow.NewMultiEngine(mailSvc, calSvc,
		calendarLLM, triageLLM, draftLLM,
		policies, notifier, log, cfg.UserTZ)

	emails, err := mailSvc.ListUnprocessed(cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("unable to fetch inbox: %w", err)
	}
	engine.Run(emails)
	return nil
}
