//go:build integration

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/agenterrors"
	"github.com/sells-group/research-cli/internal/orchestrator"
)

var chatConversationID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation with the research agent",
	Long:  "Runs an in-process Temporal worker registered with the conversation workflow and activities, then reads questions from stdin and executes one workflow run per turn under the conversation id. Each run starts from a fresh state holding only the new question; it does not load the checkpoint the previous turn saved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conversationID := chatConversationID
		if conversationID == "" {
			conversationID = uuid.New().String()
		} else if _, err := uuid.Parse(conversationID); err != nil {
			return agenterrors.ValidationError("--conversation-id must be a valid UUID", err)
		}

		env, err := buildConversationEnv(ctx)
		if err != nil {
			return fmt.Errorf("build conversation environment: %w", err)
		}
		defer env.Close()

		taskQueue := cfg.Temporal.TaskQueue
		if taskQueue == "" {
			taskQueue = orchestrator.TaskQueueName
		}

		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return fmt.Errorf("connect to temporal: %w", err)
		}
		defer temporalClient.Close()

		w := worker.New(temporalClient, taskQueue, worker.Options{})
		w.RegisterWorkflow(orchestrator.ConversationWorkflow)
		w.RegisterActivity(env.Activities)

		workerErrCh := make(chan error, 1)
		go func() { workerErrCh <- w.Run(worker.InterruptCh()) }()

		fmt.Printf("conversation %s — type a question, or \"exit\" to quit\n", conversationID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}
			if message == "exit" || message == "quit" {
				break
			}

			result, err := runTurn(ctx, temporalClient, taskQueue, conversationID, message)
			if err != nil {
				zap.L().Error("chat: turn failed", zap.Error(err))
				fmt.Println("error:", err)
				continue
			}

			if result.Blocked {
				fmt.Println(result.Caveat)
				continue
			}
			fmt.Println(result.FinalAnswer)
			for _, c := range result.Citations {
				fmt.Printf("  [%s p.%d]\n", c.DocumentID, c.Page)
			}
			if result.Caveat != "" {
				fmt.Println("note:", result.Caveat)
			}
		}

		w.Stop()
		select {
		case err := <-workerErrCh:
			if err != nil {
				zap.L().Warn("chat: worker exited with error", zap.Error(err))
			}
		default:
		}
		return scanner.Err()
	},
}

// runTurn executes one ConversationWorkflow run with conversationID as the
// workflow id, so every turn in the same conversation is a separate
// workflow execution against the same id. The workflow does not load the
// checkpoint the previous turn left behind: each run starts from a fresh
// state holding only message.
func runTurn(ctx context.Context, c client.Client, taskQueue, conversationID, message string) (orchestrator.TurnResult, error) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        conversationID,
		TaskQueue: taskQueue,
	}, orchestrator.ConversationWorkflow, orchestrator.TurnInput{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return orchestrator.TurnResult{}, fmt.Errorf("start workflow: %w", err)
	}

	var result orchestrator.TurnResult
	if err := run.Get(ctx, &result); err != nil {
		return orchestrator.TurnResult{}, fmt.Errorf("await turn result: %w", err)
	}
	return result, nil
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation-id", "", "use an existing conversation id instead of generating a new one")
	rootCmd.AddCommand(chatCmd)
}
