package cmd

import (
	"errors"
	"fmt"

	"DHAdmin/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和清理MinIO存储桶中的背景素材，支持列出文件、查看统计信息和删除某个项目的素材。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MinioEndpoint == "" {
			return errors.New("未配置 MINIO_ENDPOINT")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		store := storage.NewAssetStore(client, cfg.MinioBucket)
		ctx := cmd.Context()

		if minioDelete {
			if !cmd.Flags().Changed("prefix") {
				return errors.New("删除操作需要指定目录前缀")
			}
			fmt.Printf("删除目录: %s\n", minioPrefix)
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				return fmt.Errorf("删除目录失败: %w", err)
			}
			fmt.Printf("已删除 %d 个文件\n", n)
			return nil
		}

		objects, err := store.List(ctx, minioPrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}
		var total int64
		for _, obj := range objects {
			total += obj.Size
			if !minioStats {
				fmt.Printf("%-80s %12d\n", obj.Key, obj.Size)
			}
		}
		fmt.Printf("文件数: %d, 总大小: %.2f MB\n", len(objects), float64(total)/(1<<20))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.BackgroundPrefix, "按前缀过滤文件或指定要删除的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 列出所有背景素材
  dhadmin minio

  # 只看某个项目
  dhadmin minio -p "backgrounds/project-1/"

  # 显示统计信息
  dhadmin minio -s

  # 删除某个项目的素材
  dhadmin minio -d -p "backgrounds/project-1/"`
}
