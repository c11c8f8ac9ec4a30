// Package main is the CORTEX CLI: a thin cobra front end over
// internal/cortex (global persistent flags, one subcommand per operator
// action).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/cortex"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	brainDir     string
	workspaceDir string
	namespace    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "CORTEX - a four-tier memory substrate for a coding assistant",
	Long: `CORTEX routes a caller's text through an intent router, a protection
kernel, and a dispatched agent, learning from the outcome in the
background.

Run "cortex ask <text>" for a single request, or "cortex repl" for a loop
reading requests from stdin.`,
}

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Process a single request and print the rendered response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		env, err := engine.ProcessRequest(cmd.Context(), strings.Join(args, " "), namespace, "cli")
		if err != nil {
			return err
		}
		printEnvelope(env)
		return nil
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read requests from stdin, one per line, until EOF",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		scanner := bufio.NewScanner(os.Stdin)
		conversationID := "repl"
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			env, err := engine.ProcessRequest(cmd.Context(), text, namespace, conversationID)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			printEnvelope(env)
		}
		return scanner.Err()
	},
}

func buildEngine() (*cortex.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if brainDir != "" {
		cfg.BrainDir = brainDir
	}
	if workspaceDir != "" {
		cfg.Workspace.Dir = workspaceDir
	}
	return cortex.New(cfg)
}

func printEnvelope(env cortex.ResponseEnvelope) {
	fmt.Println(env.Text)
	if env.Blocked {
		fmt.Printf("[blocked: %s] %s\n", env.BlockedRule, env.BlockedWhy)
	}
	for _, w := range env.Warnings {
		fmt.Println("[warning]", w)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (defaults + env overrides apply if absent)")
	rootCmd.PersistentFlags().StringVar(&brainDir, "brain-dir", "", "override the configured brain_dir")
	rootCmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "override the configured workspace.dir (where categorised documents are written)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "default", "Tier 3 namespace for this invocation")

	rootCmd.AddCommand(askCmd, replCmd)
}
