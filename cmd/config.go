package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"DHAdmin/core/confdoc"
	"DHAdmin/core/projectconf"
	"DHAdmin/db"
	"DHAdmin/events"
	"DHAdmin/repository"

	"github.com/spf13/cobra"
)

var (
	configProject string
	configType    string
	configFormat  string
	configOutput  string
	configDryRun  bool
	configWatch   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "导入导出项目配置",
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出项目的节点配置和全局配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := confdoc.ParseFormat(configFormat)
		if err != nil {
			return err
		}
		return withConfigService(func(svc *projectconf.Service) error {
			var doc confdoc.Document
			if configType == "node" || configType == "all" {
				if doc.NodeConfig, err = svc.GetNodeConfig(cmd.Context(), configProject); err != nil {
					return err
				}
			}
			if configType == "global" || configType == "all" {
				if doc.GlobalConfig, err = svc.GetGlobalConfig(cmd.Context(), configProject); err != nil {
					return err
				}
			}
			if doc.NodeConfig == nil && doc.GlobalConfig == nil {
				return fmt.Errorf("无效的配置类型: %s", configType)
			}
			now := time.Now().UTC()
			doc.ExportedAt = &now

			data, err := confdoc.Export(doc, format)
			if err != nil {
				return err
			}
			out := configOutput
			if out == "" {
				out = confdoc.FileName(doc, configProject, format, now)
			}
			if out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("已导出到 %s\n", out)
			return nil
		})
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "校验并导入配置文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := configFormat
		if !cmd.Flags().Changed("format") {
			name = strings.TrimPrefix(filepath.Ext(args[0]), ".")
		}
		format, err := confdoc.ParseFormat(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := confdoc.Import(data, format)
		if err != nil {
			return err
		}
		fmt.Printf("文件校验通过: 节点配置=%t 全局配置=%t\n", doc.NodeConfig != nil, doc.GlobalConfig != nil)
		if configDryRun {
			return nil
		}

		return withConfigService(func(svc *projectconf.Service) error {
			ctx := cmd.Context()
			if err := applyDocument(ctx, svc, doc); err != nil {
				return err
			}
			if !configWatch {
				return nil
			}

			fmt.Printf("正在监听 %s 的变更，按 Ctrl+C 退出\n", args[0])
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return confdoc.WatchFile(ctx, args[0], confdoc.DefaultSettle, func(data []byte) error {
				doc, err := confdoc.Import(data, format)
				if err != nil {
					return err
				}
				return applyDocument(ctx, svc, doc)
			})
		})
	},
}

func applyDocument(ctx context.Context, svc *projectconf.Service, doc *confdoc.Document) error {
	if doc.NodeConfig != nil {
		if _, err := svc.SaveNodeConfig(ctx, configProject, doc.NodeConfig); err != nil {
			return err
		}
	}
	if doc.GlobalConfig != nil {
		if _, err := svc.SaveGlobalConfig(ctx, configProject, doc.GlobalConfig); err != nil {
			return err
		}
	}
	fmt.Printf("已导入到项目 %s\n", configProject)
	return nil
}

// withConfigService 打开数据库，配置了 AMQP_URL 时写入会发布变更事件
func withConfigService(fn func(svc *projectconf.Service) error) error {
	if !projectconf.ValidProjectID(configProject) {
		return errors.New("无效的项目ID")
	}
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if err := db.AutoMigrateModels(gormDB, repository.Models()...); err != nil {
		return err
	}

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}
	return fn(projectconf.NewService(repository.NewGormConfigRepository(gormDB), publisher))
}

func init() {
	configCmd.PersistentFlags().StringVar(&configProject, "project", "", "项目ID")
	configCmd.PersistentFlags().StringVar(&configFormat, "format", "json", "文件格式 json 或 yaml")
	_ = configCmd.MarkPersistentFlagRequired("project")

	configExportCmd.Flags().StringVar(&configType, "type", "all", "node, global 或 all")
	configExportCmd.Flags().StringVarP(&configOutput, "output", "o", "", "输出文件，- 表示标准输出")
	configImportCmd.Flags().BoolVar(&configDryRun, "dry-run", false, "只校验不写入")
	configImportCmd.Flags().BoolVarP(&configWatch, "watch", "w", false, "导入后继续监听文件变更并重新导入")

	configCmd.AddCommand(configExportCmd, configImportCmd)
	rootCmd.AddCommand(configCmd)
}
