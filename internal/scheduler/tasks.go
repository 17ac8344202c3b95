package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDeliverMessage = "assistant.message.deliver"

type DeliverMessagePayload struct {
	MessageID string `json:"messageId"`
	AccountID string `json:"accountId"`
}

func NewDeliverMessageTask(payload DeliverMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliverMessage, data), nil
}

func ParseDeliverMessagePayload(task *asynq.Task) (DeliverMessagePayload, error) {
	var payload DeliverMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeliverMessagePayload{}, err
	}
	return payload, nil
}
