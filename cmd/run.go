package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ipstack/internal/boot"
	"firestige.xyz/ipstack/internal/config"
	"firestige.xyz/ipstack/internal/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stack until interrupted",
	Long: `
Run the stack on the configured interface. The dispatch loop answers ARP,
ICMP echo and Neighbor Discovery until SIGINT or SIGTERM arrives.

Examples:
  ipstack run                 # use ./config.yml
  ipstack run -c /etc/ipstack/config.yml
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			exitWithError("failed to load config", err)
		}

		node, err := boot.Start(cfg)
		if err != nil {
			exitWithError("failed to start stack", err)
		}
		defer node.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Periodic table dump for debugging; the table is safe to read from
		// outside the dispatch goroutine.
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					node.ARP.DumpTable()
				}
			}
		}()

		if err := node.Run(ctx); err != nil && err != context.Canceled {
			exitWithError("dispatch loop failed", err)
		}
		node.ARP.DumpTable()
		log.GetLogger().Info("stack stopped")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
