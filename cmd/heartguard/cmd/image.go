package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heartguard/heartguard/internal/llm"
	"github.com/heartguard/heartguard/internal/llm/prompt"
	"github.com/heartguard/heartguard/internal/session"
)

var (
	imageStyle  string
	imageSketch string
	imageOut    string
)

var imageCmd = &cobra.Command{
	Use:   "image [description]",
	Short: "用文字或简笔画生成一幅画",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := session.ImageModeText
		var sketch *llm.ImageSource

		if imageSketch != "" {
			mode = session.ImageModeSketch
			data, err := os.ReadFile(imageSketch)
			if err != nil {
				return fmt.Errorf("failed to read sketch: %w", err)
			}
			sketch = &llm.ImageSource{
				Type:      "base64",
				MediaType: "image/png",
				Data:      base64.StdEncoding.EncodeToString(data),
			}
		}

		text := strings.Join(args, " ")
		if mode == session.ImageModeSketch && text == "" {
			text = prompt.DefaultSketchHint
		}

		img, err := heartguardApp.Orchestrator.GenerateImage(context.Background(), mode, text, imageStyle, sketch)
		if err != nil {
			return err
		}

		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return fmt.Errorf("failed to decode generated image: %w", err)
		}
		if err := os.WriteFile(imageOut, raw, 0644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		fmt.Printf("已保存到 %s\n", imageOut)
		return nil
	},
}

var imageHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近用过的画画描述",
	RunE: func(cmd *cobra.Command, args []string) error {
		records := heartguardApp.Orchestrator.PromptHistory()
		if len(records) == 0 {
			fmt.Println("还没有画过画。")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Payload)
		}
		return nil
	},
}

func init() {
	imageCmd.Flags().StringVar(&imageStyle, "style", "", "Art style (e.g. 水彩, 卡通)")
	imageCmd.Flags().StringVar(&imageSketch, "sketch", "", "Path to a sketch image to transform")
	imageCmd.Flags().StringVarP(&imageOut, "out", "o", "heartguard.png", "Output file")
	imageCmd.AddCommand(imageHistoryCmd)
	rootCmd.AddCommand(imageCmd)
}
