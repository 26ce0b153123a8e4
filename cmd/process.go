package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
	"feedback-media-worker/dto"
	"feedback-media-worker/repository"
	"feedback-media-worker/service"
	"feedback-media-worker/transcriber"
)

// process runs a single polling pass and exits, for cron-style
// invocation without the long-running server.
func process(cfg *config.Config) *cobra.Command {
	var mediaType string
	var limit int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "run one media processing pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			ctx := logger.WithContext(context.Background())

			repo := repository.NewRepo(cfg.DB)
			pipeline := service.NewPipeline(repo, transcriber.NewOpenAITranscriber(cfg), cfg.Pipeline)

			result, err := pipeline.ProcessPendingMedia(ctx, constant.MediaType(mediaType), limit)
			if err != nil {
				return err
			}

			out, err := json.Marshal(dto.ProcessResponse{
				Success:   true,
				Processed: result.Processed,
				Results:   result.Results,
			})
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaType, "media-type", string(constant.MediaTypeAudio), "media type to process (audio or video)")
	cmd.Flags().IntVar(&limit, "limit", 0, "batch limit (0 uses the configured default)")

	return cmd
}
