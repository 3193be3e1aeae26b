package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"newsarchive/queue"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "inspect and control bulk operations",
}

var bulkCreateOperation string
var bulkCreateDescription string
var bulkCreateTasksJSON string

var bulkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "create a bulk operation from a JSON array of task parameter objects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var paramSets []map[string]interface{}
		if err := json.Unmarshal([]byte(bulkCreateTasksJSON), &paramSets); err != nil {
			return fmt.Errorf("parse --tasks: %w", err)
		}

		requests := make([]queue.EnqueueRequest, len(paramSets))
		for i, params := range paramSets {
			requests[i] = queue.EnqueueRequest{Operation: bulkCreateOperation, Parameters: params}
		}

		bulkID, err := a.q.BulkCreate(ctx, bulkCreateDescription, bulkCreateOperation, requests)
		if err != nil {
			return err
		}
		fmt.Println(bulkID)
		return nil
	},
}

var bulkAddBulkID string
var bulkAddOperation string
var bulkAddTasksJSON string

var bulkAddCmd = &cobra.Command{
	Use:   "add",
	Short: "add more tasks to an existing bulk operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var paramSets []map[string]interface{}
		if err := json.Unmarshal([]byte(bulkAddTasksJSON), &paramSets); err != nil {
			return fmt.Errorf("parse --tasks: %w", err)
		}

		for _, params := range paramSets {
			if _, err := a.q.Enqueue(ctx, queue.EnqueueRequest{
				Operation: bulkAddOperation,
				Parameters: params,
				BulkID:    bulkAddBulkID,
			}); err != nil {
				return err
			}
		}
		log.WithField("bulk_id", bulkAddBulkID).WithField("count", len(paramSets)).Info("tasks added to bulk")
		return nil
	},
}

var bulkStatusCmd = &cobra.Command{
	Use:   "status <bulk-id>",
	Short: "print a bulk operation's progress counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		bulk, err := a.q.BulkStatus(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("status=%s total=%d pending=%d in_progress=%d succeeded=%d failed=%d\n",
			bulk.Status, bulk.Total, bulk.Pending, bulk.InProgress, bulk.Succeeded, bulk.Failed)
		return nil
	},
}

var bulkPauseCmd = &cobra.Command{
	Use:   "pause <bulk-id>",
	Short: "pause a running bulk operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.q.PauseBulk(ctx, args[0])
	},
}

var bulkResumeCmd = &cobra.Command{
	Use:   "resume <bulk-id>",
	Short: "resume a paused bulk operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.q.ResumeBulk(ctx, args[0])
	},
}

var bulkCancelCmd = &cobra.Command{
	Use:   "cancel <bulk-id>",
	Short: "cancel a bulk operation and its unfinished tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.q.CancelBulk(ctx, args[0])
	},
}

var bulkRetryFailedCmd = &cobra.Command{
	Use:   "retry-failed <bulk-id>",
	Short: "requeue a bulk operation's failed tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		count, err := a.q.RetryFailedBulk(ctx, args[0])
		if err != nil {
			return err
		}
		log.WithField("count", count).Info("failed tasks requeued")
		return nil
	},
}

func init() {
	bulkCreateCmd.Flags().StringVar(&bulkCreateOperation, "operation", "", "task operation name")
	bulkCreateCmd.Flags().StringVar(&bulkCreateDescription, "description", "", "human-readable bulk description")
	bulkCreateCmd.Flags().StringVar(&bulkCreateTasksJSON, "tasks", "[]", "JSON array of per-task parameter objects")
	bulkCreateCmd.MarkFlagRequired("operation")

	bulkAddCmd.Flags().StringVar(&bulkAddBulkID, "bulk-id", "", "bulk to add tasks to")
	bulkAddCmd.Flags().StringVar(&bulkAddOperation, "operation", "", "task operation name")
	bulkAddCmd.Flags().StringVar(&bulkAddTasksJSON, "tasks", "[]", "JSON array of per-task parameter objects")
	bulkAddCmd.MarkFlagRequired("bulk-id")
	bulkAddCmd.MarkFlagRequired("operation")

	bulkCmd.AddCommand(bulkCreateCmd, bulkAddCmd, bulkStatusCmd, bulkPauseCmd, bulkResumeCmd, bulkCancelCmd, bulkRetryFailedCmd)
	RootCmd.AddCommand(bulkCmd)
}
