package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/openchallenges/harness/config"
	"github.com/openchallenges/harness/core"
	"github.com/openchallenges/harness/harness"
	"github.com/openchallenges/harness/lockfile"
)

// lockContentionExitCode is the sysexits temp-fail code: another
// harness run holds the lock, retry later.
const lockContentionExitCode = 75

var testCtx, testCancel = context.WithCancel(context.Background())

func resolveFile(files ...string) (string, error) {
	for _, file := range files {
		if len(file) == 0 {
			continue
		}
		if _, err := os.Stat(file); err == nil {
			return file, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", os.ErrNotExist
}

// getConfig reads config with filename from the second positional
// argument, falling back to the HARNESS_CONFIG environment variable.
func getConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	var argFilename string
	if len(args) > 1 {
		argFilename = args[1]
	}
	envFilename := os.Getenv("HARNESS_CONFIG")
	resolved, err := resolveFile(argFilename, envFilename)
	if err != nil {
		return config.Config{}, fmt.Errorf("cannot resolve config file: %w", err)
	}
	cfg, err := config.LoadFromFile(resolved)
	if err != nil {
		return config.Config{}, err
	}
	if debug, err := cmd.Flags().GetBool("debug"); err == nil && debug {
		cfg.LogLevel = config.LogLevel(log.DEBUG)
	}
	if ids, err := cmd.Flags().GetInt64Slice("admin-user-ids"); err == nil && len(ids) > 0 {
		cfg.AdminUserIDs = ids
	}
	return cfg, nil
}

func setupDriver(
	ctx context.Context, cmd *cobra.Command, args []string,
) (*harness.Driver, *core.Core, error) {
	cfg, err := getConfig(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(ctx); err != nil {
		c.Stop()
		return nil, nil, err
	}
	if err := login(ctx, cmd, c); err != nil {
		c.Stop()
		return nil, nil, err
	}
	driver := harness.NewDriver(c, registry)
	if len(args) > 0 {
		driver.ChallengeID = args[0]
	}
	flags := cmd.Flags()
	driver.EvaluationID, _ = flags.GetInt64("evaluation")
	driver.DryRun, _ = flags.GetBool("dry-run")
	driver.RemoveCache, _ = flags.GetBool("remove-cache")
	driver.SendMessages, _ = flags.GetBool("send-messages")
	driver.AcknowledgeReceipt, _ = flags.GetBool("acknowledge-receipt")
	driver.Notifications, _ = flags.GetBool("notifications")
	return driver, c, nil
}

// login authenticates the platform client. Credentials come from
// flags, then SYNAPSE_USER and SYNAPSE_PASSWORD, then the config.
// Without any configured user the client stays anonymous.
func login(ctx context.Context, cmd *cobra.Command, c *core.Core) error {
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	if user == "" {
		user = os.Getenv("SYNAPSE_USER")
	}
	if password == "" {
		password = os.Getenv("SYNAPSE_PASSWORD")
	}
	if user == "" && c.Config.Platform.User == "" {
		return nil
	}
	return c.Login(ctx, user, password)
}

func validateMain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(testCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	driver, c, err := setupDriver(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer c.Stop()
	return driver.Validate(ctx)
}

func scoreMain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(testCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	driver, c, err := setupDriver(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer c.Stop()
	return driver.Score(ctx)
}

func linkWriteupsMain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(testCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	driver, c, err := setupDriver(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer c.Stop()
	writeupQueue, _ := cmd.Flags().GetInt64("writeup-queue")
	predictionQueue, _ := cmd.Flags().GetInt64("prediction-queue")
	statusKey, _ := cmd.Flags().GetString("status-key")
	return driver.LinkWriteups(ctx, writeupQueue, predictionQueue, statusKey)
}

func archiveMain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(testCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	driver, c, err := setupDriver(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer c.Stop()
	submissionID, _ := cmd.Flags().GetInt64("submission")
	archivedID, err := driver.Archive(ctx, submissionID)
	if err != nil {
		return err
	}
	cmd.Println(archivedID)
	return nil
}

func main() {
	rootCmd := cobra.Command{
		Use:           os.Args[0],
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Int64("evaluation", 0, "Run only this evaluation queue")
	rootCmd.PersistentFlags().Int64Slice("admin-user-ids", nil, "Administrator user IDs")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Platform user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "Platform password")
	rootCmd.PersistentFlags().Bool("notifications", false, "Send error notifications to administrators")
	rootCmd.PersistentFlags().Bool("send-messages", false, "Send result messages to submitters")
	rootCmd.PersistentFlags().Bool("acknowledge-receipt", false, "Acknowledge received submissions")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Do not store statuses or send messages")
	rootCmd.PersistentFlags().Bool("remove-cache", false, "Remove downloaded submission files")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate <challenge> <config>",
		RunE:  validateMain,
		Args:  cobra.RangeArgs(1, 2),
		Short: "Validates received submissions",
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "score <challenge> <config>",
		RunE:  scoreMain,
		Args:  cobra.RangeArgs(1, 2),
		Short: "Scores validated submissions",
	})
	linkCmd := cobra.Command{
		Use:   "link-writeups <challenge> <config>",
		RunE:  linkWriteupsMain,
		Args:  cobra.RangeArgs(1, 2),
		Short: "Archives writeups and links them to scored predictions",
	}
	linkCmd.Flags().Int64("writeup-queue", 0, "Evaluation queue with writeups")
	linkCmd.Flags().Int64("prediction-queue", 0, "Evaluation queue with predictions")
	linkCmd.Flags().String("status-key", "", "Status column of the writeup queue")
	_ = linkCmd.MarkFlagRequired("writeup-queue")
	_ = linkCmd.MarkFlagRequired("prediction-queue")
	rootCmd.AddCommand(&linkCmd)
	archiveCmd := cobra.Command{
		Use:   "archive <challenge> <config>",
		RunE:  archiveMain,
		Args:  cobra.RangeArgs(1, 2),
		Short: "Archives the writeup project of one submission",
	}
	archiveCmd.Flags().Int64("submission", 0, "Submission ID")
	_ = archiveCmd.MarkFlagRequired("submission")
	rootCmd.AddCommand(&archiveCmd)
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, lockfile.ErrAlreadyLocked) {
			fmt.Fprintln(os.Stderr, "harness is already running:", err)
			os.Exit(lockContentionExitCode)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
