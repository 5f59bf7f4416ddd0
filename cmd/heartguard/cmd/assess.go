package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heartguard/heartguard/internal/markdown"
	"github.com/heartguard/heartguard/internal/media"
	"github.com/heartguard/heartguard/internal/session"
)

var (
	assessInput session.AssessmentInput
	assessPhoto string
)

// attachPhoto captures the photo file through a scoped session and stores
// it on the input as a data URL.
func attachPhoto(path string) error {
	controller := media.NewController(&media.FileDevice{Path: path}, media.FileCapturer{}, heartguardApp.Notifications)
	capture, err := controller.Open()
	if err != nil {
		return err
	}
	defer capture.Close()

	frame, err := capture.Capture()
	if err != nil {
		return fmt.Errorf("failed to capture photo: %w", err)
	}
	assessInput.Photo = frame.DataURL()
	return nil
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "生成儿童心理评估报告",
	RunE: func(cmd *cobra.Command, args []string) error {
		if assessPhoto != "" {
			if err := attachPhoto(assessPhoto); err != nil {
				return err
			}
		}

		rec, err := heartguardApp.Orchestrator.RunAssessment(context.Background(), assessInput)
		if err != nil {
			return err
		}

		renderer, err := markdown.NewChatRenderer()
		if err != nil {
			return err
		}
		out, err := renderer.Render(rec.Payload.Result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var assessHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "查看已保存的评估报告",
	RunE: func(cmd *cobra.Command, args []string) error {
		records := heartguardApp.Orchestrator.AssessmentHistory()
		if len(records) == 0 {
			fmt.Println("还没有保存的评估报告。")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s（%d岁）\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Payload.Input.ChildName, rec.Payload.Input.ChildAge)
		}
		return nil
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessInput.ChildName, "name", "", "Child's name (required)")
	assessCmd.Flags().IntVar(&assessInput.ChildAge, "age", 0, "Child's age")
	assessCmd.Flags().StringVar(&assessInput.ChildGender, "gender", "", "Child's gender")
	assessCmd.Flags().StringVar(&assessInput.Sleep, "sleep", "", "Sleep quality")
	assessCmd.Flags().StringVar(&assessInput.Electronics, "electronics", "", "Daily screen time")
	assessCmd.Flags().StringVar(&assessInput.PeerRel, "peers", "", "Peer relationships")
	assessCmd.Flags().StringSliceVar(&assessInput.Concerns, "concern", nil, "Observed concern, repeatable")
	assessCmd.Flags().StringVar(&assessInput.Notes, "notes", "", "Guardian notes")
	assessCmd.Flags().StringVar(&assessPhoto, "photo", "", "Path to a photo of the child, attached to the analysis")
	assessCmd.Flags().StringVar(&assessInput.Details, "details", "", "Additional details")
	assessCmd.AddCommand(assessHistoryCmd)
	rootCmd.AddCommand(assessCmd)
}
