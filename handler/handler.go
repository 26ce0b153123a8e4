package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"feedback-media-worker/constant"
	"feedback-media-worker/dto"
	"feedback-media-worker/service"
)

type ServiceDependencies struct {
	Pipeline service.Pipeline
}

// ProcessTriggerHandler handles queue-published trigger messages: one
// message runs one polling pass for the requested media type.
func ProcessTriggerHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var trigger dto.ProcessTriggerMessage
	if err := json.Unmarshal(msg.Body, &trigger); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal process trigger message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("media_type", string(trigger.MediaType)).
		Int("limit", trigger.Limit).
		Msg("received process trigger")

	result, err := deps.Pipeline.ProcessPendingMedia(ctx, trigger.MediaType, trigger.Limit)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Int("processed", result.Processed).Msg("process trigger finished")
	return nil
}

// ProcessMedia is the HTTP entry point the cron scheduler calls, one
// route per media type.
func ProcessMedia(pipeline service.Pipeline, mediaType constant.MediaType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		result, err := pipeline.ProcessPendingMedia(c.Request.Context(), mediaType, req.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, dto.ProcessResponse{
			Success:   true,
			Processed: result.Processed,
			Results:   result.Results,
		})
	}
}
