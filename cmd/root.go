package cmd

import (
	"fmt"
	"os"

	"DHAdmin/config"
	"DHAdmin/logger"

	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dhadmin",
	Short: "DHAdmin 数字人项目配置管理后台",
	Long:  `DHAdmin 为数字人项目管理控制台提供账号认证、节点配置、全局配置、导入导出和版本快照等服务。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadFrom(envFile)
		return logger.InitLogger(logger.Config{
			Level:      cfg.LogLevel,
			OutputPath: cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "要加载的 .env 文件，默认读取当前目录下的 .env")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
