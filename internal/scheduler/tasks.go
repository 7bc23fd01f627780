// Package scheduler runs the follow-up cadence on an interval via asynq.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskFollowUpRun = "automation.followups.run"

// FollowUpRunPayload identifies one cadence batch run. ActorID is empty for
// timer-driven runs and carries the operator id for manually enqueued ones.
type FollowUpRunPayload struct {
	ActorID string `json:"actorId,omitempty"`
}

func NewFollowUpRunTask(payload FollowUpRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpRun, data), nil
}

func ParseFollowUpRunPayload(task *asynq.Task) (FollowUpRunPayload, error) {
	var payload FollowUpRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpRunPayload{}, err
	}
	return payload, nil
}
