package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heartguard/heartguard/internal/markdown"
	"github.com/heartguard/heartguard/internal/session"
)

var (
	storyAgeGroup string
	storyLength   string
	storyTone     string
)

var storyCmd = &cobra.Command{
	Use:   "story [keywords]",
	Short: "生成一个治愈系小故事",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := heartguardApp.Orchestrator.GenerateStory(context.Background(), session.StoryParams{
			Theme:    strings.Join(args, " "),
			AgeGroup: storyAgeGroup,
			Length:   storyLength,
			Tone:     storyTone,
		})
		if err != nil {
			return err
		}

		renderer, err := markdown.NewChatRenderer()
		if err != nil {
			return err
		}
		out, err := renderer.RenderNarrative(rec.Payload.Narrative)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var storyHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "查看已保存的故事",
	RunE: func(cmd *cobra.Command, args []string) error {
		records := heartguardApp.Orchestrator.StoryHistory()
		if len(records) == 0 {
			fmt.Println("还没有保存的故事。")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s（主题：%s）\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Payload.Narrative.Title, rec.Payload.Params.Theme)
		}
		return nil
	},
}

func init() {
	storyCmd.Flags().StringVar(&storyAgeGroup, "age", "", "Age group of the listener (e.g. 6-8岁)")
	storyCmd.Flags().StringVar(&storyLength, "length", "", "Story length: short or long")
	storyCmd.Flags().StringVar(&storyTone, "tone", "", "Story tone: adventure, happy or brave")
	storyCmd.AddCommand(storyHistoryCmd)
	rootCmd.AddCommand(storyCmd)
}
