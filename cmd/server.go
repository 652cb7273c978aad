package cmd

import (
	"DHAdmin/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serverCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "启动DHAdmin服务器",
	Long:    `启动HTTP服务器，提供认证、项目配置、导入导出、版本快照和配置变更推送接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}
		return server.Start(cfg)
	},
}

func init() {
	serverCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，覆盖 HTTP_ADDR")
	rootCmd.AddCommand(serverCmd)
}
