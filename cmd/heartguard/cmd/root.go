package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/heartguard/heartguard/internal/app"
	"github.com/heartguard/heartguard/internal/markdown"
	"github.com/heartguard/heartguard/internal/tui"
)

var debug bool

// Global app instance shared across subcommands.
var heartguardApp *app.App

var rootCmd = &cobra.Command{
	Use:   "heartguard",
	Short: "心灵守护 - 关爱留守儿童心理健康",
	Long: `HeartGuard is a companion for rural left-behind children.

Usage:
  heartguard          # Start the interactive chat

Features:
- Chat with 康康老师, a warm-hearted listener
- Streamed replies with saved conversation history
- Psychological assessment reports for guardians
- Healing stories and picture generation`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		heartguardApp, err = app.New(debug)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		renderer, err := markdown.NewChatRenderer()
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}

		model := tui.New(ctx, heartguardApp.Orchestrator, heartguardApp.Voice, renderer)
		model.SetNotifications(heartguardApp.Notifications.Subscribe(ctx))

		if heartguardApp.FirstRun() {
			heartguardApp.CompleteTutorial()
		}

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run ui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}

// Execute runs the CLI.
func Execute() {
	defer func() {
		if heartguardApp != nil {
			heartguardApp.Shutdown()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
