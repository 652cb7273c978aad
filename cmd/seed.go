package cmd

import (
	"errors"
	"fmt"

	"DHAdmin/core/auth"
	"DHAdmin/db"
	"DHAdmin/repository"

	"github.com/spf13/cobra"
)

// 开发环境的演示账号
var seedUsers = []struct {
	Username string
	Email    string
	Password string
}{
	{"admin", "admin@example.com", "admin123"},
	{"test", "test@example.com", "test123"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "写入演示账号",
	Long:  `在开发环境创建 admin@example.com 和 test@example.com 两个演示账号，已存在的账号会被跳过。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return errors.New("生产环境不允许写入演示账号")
		}

		gormDB, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gormDB)
		if err := db.AutoMigrateModels(gormDB, repository.Models()...); err != nil {
			return err
		}

		svc, err := auth.NewService(repository.NewGormUserRepository(gormDB), cfg.JWTSecret)
		if err != nil {
			return err
		}
		for _, u := range seedUsers {
			_, err := svc.Register(cmd.Context(), u.Username, u.Email, u.Password)
			switch {
			case errors.Is(err, auth.ErrEmailTaken):
				fmt.Printf("跳过已存在的账号: %s\n", u.Email)
			case err != nil:
				return fmt.Errorf("创建账号 %s 失败: %w", u.Email, err)
			default:
				fmt.Printf("已创建账号: %s / %s\n", u.Email, u.Password)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
