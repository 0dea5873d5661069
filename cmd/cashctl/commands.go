package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/saeid-a/CoachLedgerBack/internal/batch"
	"github.com/saeid-a/CoachLedgerBack/internal/models"
	"github.com/saeid-a/CoachLedgerBack/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newMarkOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-overdue",
		Short: "Mark past-due pending expenses as overdue",
		Long:  `Runs the overdue sweep for every coach account.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withToolkit(ctx, func(kit *toolkit) error {
				userIDs, err := kit.users.ListIDsByRole(ctx, models.RoleCoach)
				if err != nil {
					return fmt.Errorf("list coaches: %w", err)
				}

				var failures error
				marked := 0
				for _, userID := range userIDs {
					result, err := kit.expenses.MarkOverdue(ctx, userID, nil)
					if err != nil {
						failures = multierr.Append(failures, fmt.Errorf("user %d: %w", userID, err))
						continue
					}
					marked += result.TotalSuccess
					failures = multierr.Append(failures, result.Err())
				}

				fmt.Fprintf(cmd.OutOrStdout(), "marked %d expenses overdue across %d users\n", marked, len(userIDs))
				return failures
			})
		},
	}
}

func newSeedCategoriesCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "seed-categories",
		Short: "Create the default expense categories for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			ctx := cmd.Context()
			return withToolkit(ctx, func(kit *toolkit) error {
				result, err := kit.expenses.SeedDefaultCategories(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d categories\n", result.TotalSuccess)
				return result.Err()
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
	return cmd
}

func newImportMentorshipsCmd() *cobra.Command {
	var (
		userID int64
		file   string
	)
	cmd := &cobra.Command{
		Use:   "import-mentorships",
		Short: "Bulk insert mentorships from a JSON file",
		Long:  `Reads a JSON array of mentorships and inserts them in batches.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			inputs, err := readMentorshipFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withToolkit(ctx, func(kit *toolkit) error {
				result, err := kit.mentorships.BulkCreate(ctx, userID, inputs, printProgress(cmd.OutOrStdout(), "imported"))
				if result != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "created %d, failed %d\n", result.TotalSuccess, result.TotalErrors)
				}
				if err != nil {
					return err
				}
				return result.Err()
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of mentorships")
	for _, name := range []string{"user", "file"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func newPurgeMentorshipsCmd() *cobra.Command {
	var (
		userID   int64
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "purge-mentorships",
		Short: "Delete a user's deactivated mentorships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			if !inactive {
				return fmt.Errorf("only --inactive purges are supported")
			}

			ctx := cmd.Context()
			return withToolkit(ctx, func(kit *toolkit) error {
				result, err := kit.mentorships.PurgeInactive(ctx, userID, printProgress(cmd.OutOrStdout(), "deleted"))
				if result != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %d, failed %d\n", result.TotalSuccess, result.TotalErrors)
				}
				if err != nil {
					return err
				}
				return result.Err()
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "delete mentorships that are not active")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
	return cmd
}

func readMentorshipFile(path string) ([]services.CreateMentorshipInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return decodeMentorships(file)
}

func decodeMentorships(r io.Reader) ([]services.CreateMentorshipInput, error) {
	var inputs []services.CreateMentorshipInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode mentorships: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no mentorships in file")
	}
	return inputs, nil
}

func printProgress(out io.Writer, verb string) batch.ProgressFunc {
	return func(processed, total int) {
		fmt.Fprintf(out, "%s %d/%d\n", verb, processed, total)
		log.Debug().Int("processed", processed).Int("total", total).Msg("Batch progress")
	}
}
