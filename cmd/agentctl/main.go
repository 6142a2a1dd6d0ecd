// Command agentctl drives the Agent Loop end-to-end against the scripted
// mock provider. It exists as an executable example of how the core's
// pieces wire together, not as a product CLI.
package main

import (
	"fmt"
	"os"

	"github.com/agentcore/runtime/internal/cliapp"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/session/sqlitelog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
	sessionDB  string
	proxyCodec bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Drive the agent runtime against the demo mock provider",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a runtime config YAML file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sessionDB, "session-db", "", "Path to a SQLite file for durable session history (defaults to in-memory)")
	rootCmd.PersistentFlags().BoolVar(&proxyCodec, "proxy-codec", false, "Round-trip assistant events through the bandwidth-optimized proxy codec")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one prompt through the agent loop and print its reply",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search past compaction summaries (requires --session-db)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	metricsSvc := metrics.NewWithOptions(metrics.Options{})
	opts := cliapp.Options{Config: cfg, Metrics: metricsSvc, ProxyCodec: proxyCodec}

	if sessionDB != "" {
		db, err := sqlitelog.Open(sessionDB)
		if err != nil {
			return fmt.Errorf("agentctl: %w", err)
		}
		defer db.Close()
		opts.Store = db
	}
	app := cliapp.New(opts)

	reply, err := app.Ask(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("agentctl: %w", err)
	}
	fmt.Println(reply)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if sessionDB == "" {
		return fmt.Errorf("agentctl: search requires --session-db (a MemStore keeps no searchable history across runs)")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sqlitelog.Open(sessionDB)
	if err != nil {
		return fmt.Errorf("agentctl: %w", err)
	}
	defer db.Close()

	app := cliapp.New(cliapp.Options{Config: cfg, Store: db})
	matches, err := app.SearchPastCompactions(cmd.Context(), args[0], 10)
	if err != nil {
		return fmt.Errorf("agentctl: %w", err)
	}
	for _, m := range matches {
		fmt.Printf("%s\t%s\n", m.EntryID, m.Summary)
	}
	return nil
}
