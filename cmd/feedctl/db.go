package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diskuto/backend"
	"diskuto/pkg/config"
	"diskuto/prune"
	"diskuto/query"
	"diskuto/store/sqlite"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Operate on the underlying store",
}

func openBuilder() (*sqlite.Builder, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return &sqlite.Builder{Path: cfg.Storage.SQLiteFile, MaxOpenConns: cfg.Storage.MaxOpenConns, MaxIdleConns: cfg.Storage.MaxIdleConns}, nil
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new store",
	RunE: func(cmd *cobra.Command, args []string) error {
		builder, err := openBuilder()
		if err != nil {
			return err
		}
		exists, err := builder.Exists()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("store %q already exists", builder.Path)
		}
		return builder.Create(context.Background())
	},
}

var dbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Run pending schema upgrades",
	RunE: func(cmd *cobra.Command, args []string) error {
		builder, err := openBuilder()
		if err != nil {
			return err
		}
		return builder.Upgrade(context.Background())
	},
}

var (
	pruneDryRun  bool
	pruneItems   bool
	pruneAttachs bool
)

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Reclaim orphaned items and attachment blobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		builder, err := openBuilder()
		if err != nil {
			return err
		}
		factory, err := builder.Factory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		report, err := prune.Run(ctx, be, backend.PruneOptions{DryRun: pruneDryRun, Items: pruneItems, Attachments: pruneAttachs})
		if err != nil {
			return err
		}
		fmt.Printf("items_deleted=%d attachments_deleted=%d bytes_reclaimed=%d\n",
			report.ItemsDeleted, report.AttachmentsDeleted, report.BytesReclaimed)
		return nil
	},
}

var dbUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report per-user storage usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		builder, err := openBuilder()
		if err != nil {
			return err
		}
		factory, err := builder.Factory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()

		rows, err := query.Usage(ctx, be, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Printf("%s\t%s\titem_bytes=%d\tattachment_bytes=%d\ttotal=%d\n",
				row.User.String(), row.DisplayName, row.ItemBytes, row.AttachmentBytes, row.Total())
		}
		return nil
	},
}

var dbReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild profile/follow/reply/known_users by replaying stored items",
	RunE: func(cmd *cobra.Command, args []string) error {
		builder, err := openBuilder()
		if err != nil {
			return err
		}
		factory, err := builder.Factory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()
		return be.Rebuild(ctx)
	},
}

func init() {
	dbPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", true, "report what would be reclaimed without deleting")
	dbPruneCmd.Flags().BoolVar(&pruneItems, "items", true, "reclaim orphaned items")
	dbPruneCmd.Flags().BoolVar(&pruneAttachs, "attachments", true, "reclaim orphaned attachment blobs")
	dbUsageCmd.Flags().Int("limit", 0, "limit the number of rows reported (0 = unbounded)")
	dbCmd.AddCommand(dbInitCmd, dbUpgradeCmd, dbPruneCmd, dbUsageCmd, dbReindexCmd)
}
