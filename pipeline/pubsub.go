package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
)

// RunPayload is the message body carried between the trigger endpoint and
// the push worker.
type RunPayload struct {
	Task        string `json:"task"`
	TriggeredBy string `json:"triggered_by"`
}

// PubSubPushEnvelope is the wrapper Google delivers to push endpoints.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func PublishRun(ctx context.Context, task, triggeredBy string) error {
	topicName := strings.TrimSpace(os.Getenv("REPLENISH_TOPIC"))
	if topicName == "" {
		topicName = "replenish-pipeline"
	}

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	payload := RunPayload{Task: task, TriggeredBy: triggeredBy}
	data, _ := json.Marshal(payload)
	res := client.Topic(topicName).Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts a pushed run request and executes it inline.
// Delivery problems always get a 204 so the subscription does not retry
// garbage forever; only a genuine run failure propagates as a 500 for
// redelivery.
func (w *Worker) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.EnvBool("ENABLE_PIPELINE_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload RunPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.Task == "" {
			c.Status(204)
			return
		}
		if payload.TriggeredBy == "" {
			payload.TriggeredBy = models.RunTriggeredRemote
		}

		if _, err := w.Run(c.Request.Context(), payload.Task, payload.TriggeredBy); err != nil && err != ErrRunInProgress {
			c.Status(500)
			return
		}
		c.Status(204)
	}
}
