package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cachedns/common"
	"cachedns/logger"
	"cachedns/server"
	"cachedns/stats"
)

var configFilePath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cachedns",
	Short: "Caching forwarding DNS resolver",
	Long: `cachedns answers A and PTR queries from a local TTL-aware cache and
forwards everything else to a single upstream resolver. The cache survives
restarts through a snapshot file written on shutdown and on demand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write a commented default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return common.CreateConfigFile(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "config file path")
	rootCmd.Flags().String("listen", "", "listen address (overrides config)")
	rootCmd.Flags().String("upstream", "", "upstream resolver address (overrides config)")
	rootCmd.Flags().String("snapshot", "", "cache snapshot file path (overrides config)")
	rootCmd.AddCommand(initConfigCmd)
}

func run(cmd *cobra.Command) error {
	if err := common.Init(configFilePath); err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		common.Config.Service.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("upstream") {
		common.Config.Upstream.Forwarder, _ = cmd.Flags().GetString("upstream")
	}
	if cmd.Flags().Changed("snapshot") {
		common.Config.Cache.SnapshotFilePath, _ = cmd.Flags().GetString("snapshot")
	}
	if err := logger.Init(); err != nil {
		return err
	}

	srv, err := server.New()
	if err != nil {
		return err
	}

	if common.Config.Metrics.Enable {
		go func() {
			if err := stats.Serve(common.Config.Metrics.ListenAddr); err != nil {
				logger.Warning("Serve Metrics", common.Config.Metrics.ListenAddr, err)
			}
		}()
	}

	go consoleWorker(srv)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("Handle Signal", sig)
		srv.Stop()
	}()

	fmt.Println("Available commands: !help, !stop, !save")
	return srv.Run()
}

// consoleWorker reads line commands from stdin until the input closes or the
// server stops.
func consoleWorker(srv *server.Server) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch scanner.Text() {
		case "!help":
			fmt.Println("Available commands:")
			fmt.Println("!help - show this help")
			fmt.Println("!stop - stop the server")
			fmt.Println("!save - save the cache snapshot")
		case "!stop":
			logger.Info("Handle Console Command", "stop requested")
			srv.Stop()
			return
		case "!save":
			logger.Info("Handle Console Command", "saving cache snapshot")
			srv.SaveSnapshot()
		case "":
		default:
			fmt.Println("Unknown command:", scanner.Text())
		}
	}
}
