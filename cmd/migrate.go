package cmd

import (
	"DHAdmin/db"
	"DHAdmin/logger"
	"DHAdmin/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gormDB)

		if err := db.AutoMigrateModels(gormDB, repository.Models()...); err != nil {
			return err
		}
		logger.Info("[Migrate] 数据库表结构已更新", logger.String("driver", cfg.DBDriver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
