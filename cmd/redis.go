package cmd

import (
	"context"
	"fmt"
	"time"

	"DHAdmin/cache"
	"DHAdmin/db"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，进行基本读写操作，并验证令牌吊销列表可用。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := db.CheckRedis(ctx, client); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		// 用一个随机 jti 走一遍吊销流程
		denylist := cache.NewTokenDenylist(client)
		jti := "healthcheck-" + uuid.NewString()
		if err := denylist.Revoke(ctx, jti, time.Minute); err != nil {
			return fmt.Errorf("写入吊销列表失败: %w", err)
		}
		revoked, err := denylist.IsRevoked(ctx, jti)
		if err != nil {
			return fmt.Errorf("读取吊销列表失败: %w", err)
		}
		if !revoked {
			return fmt.Errorf("吊销列表未记录 %s", cache.GetRevokedTokenKey(jti))
		}
		client.Del(ctx, cache.GetRevokedTokenKey(jti))
		fmt.Println("令牌吊销列表测试成功！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
