// Package cli implements the administrative command-line tool (spec
// §6.6 excludes a CLI from the core surface, but operators still need a
// way to inspect and manage jobs against the same record store the API
// and worker use). Grounded on the teacher's Cobra command tree in this
// same file: the root/subcommand/flag registration shape is kept, the
// generate/publish/list-voices commands are replaced with job
// administration commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/recordstore"
)

var rootCmd = &cobra.Command{
	Use:   "podcli",
	Short: "Administer slidecaster jobs against the record store",
}

var (
	flagRecordStoreURL      string
	flagRecordStoreEmail    string
	flagRecordStorePassword string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, optionally filtered by status",
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job's full record",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or processing job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job record (artifact cleanup is the caller's responsibility)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	flagListStatus string
	flagListLimit  int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRecordStoreURL, "record-store-url", os.Getenv("RECORD_STORE_URL"), "Record store base URL")
	rootCmd.PersistentFlags().StringVar(&flagRecordStoreEmail, "record-store-email", os.Getenv("RECORD_STORE_ADMIN_EMAIL"), "Record store admin email")
	rootCmd.PersistentFlags().StringVar(&flagRecordStorePassword, "record-store-password", os.Getenv("RECORD_STORE_ADMIN_PASSWORD"), "Record store admin password")

	listCmd.Flags().StringVar(&flagListStatus, "status", "", "Filter by status: pending, processing, completed, failed, cancelled (default pending)")
	listCmd.Flags().IntVar(&flagListLimit, "limit", 50, "Maximum records to list")

	rootCmd.AddCommand(listCmd, getCmd, cancelCmd, deleteCmd)
}

// Execute runs the CLI's root command.
func Execute() error {
	return rootCmd.Execute()
}

func newClient() (*recordstore.Client, error) {
	if flagRecordStoreURL == "" || flagRecordStoreEmail == "" || flagRecordStorePassword == "" {
		return nil, fmt.Errorf("--record-store-url, --record-store-email, and --record-store-password (or their env var equivalents) are required")
	}
	return recordstore.New(flagRecordStoreURL, flagRecordStoreEmail, flagRecordStorePassword), nil
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	status := jobs.Status(flagListStatus)
	if flagListStatus == "" {
		status = jobs.StatusPending
	}

	records, err := client.ListByStatus(context.Background(), status, flagListLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	for _, r := range records {
		fmt.Printf("%s\t%s\t%3d%%\t%s\t%s\n", r.ID, r.Status, r.Progress, r.URL, r.Created.Format(time.RFC3339))
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	record, err := client.GetJob(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func runCancel(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	record, err := client.GetJob(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if !record.Status.Cancellable() {
		return fmt.Errorf("job %s is %s, cannot be cancelled", record.ID, record.Status)
	}

	if _, err := client.UpdateJob(context.Background(), args[0], jobs.PatchCancelled(time.Now())); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	fmt.Printf("cancelled %s\n", args[0])
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.DeleteJob(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
