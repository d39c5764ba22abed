package scheduler

import (
	"encoding/json"

	"sentra_backend/internal/story/domain"

	"github.com/hibiken/asynq"
)

const TaskStoryTripChanged = "story.trip.changed"

const TaskStoryItineraryChanged = "story.itinerary.changed"

const TaskStoryCommunicationCreated = "story.communication.created"

func NewStoryTripChangedTask(trip *domain.Trip) (*asynq.Task, error) {
	data, err := json.Marshal(trip)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoryTripChanged, data), nil
}

func ParseStoryTripChangedPayload(task *asynq.Task) (*domain.Trip, error) {
	var trip domain.Trip
	if err := json.Unmarshal(task.Payload(), &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func NewStoryItineraryChangedTask(itinerary *domain.Itinerary) (*asynq.Task, error) {
	data, err := json.Marshal(itinerary)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoryItineraryChanged, data), nil
}

func ParseStoryItineraryChangedPayload(task *asynq.Task) (*domain.Itinerary, error) {
	var itinerary domain.Itinerary
	if err := json.Unmarshal(task.Payload(), &itinerary); err != nil {
		return nil, err
	}
	return &itinerary, nil
}

func NewStoryCommunicationCreatedTask(comm *domain.Communication) (*asynq.Task, error) {
	data, err := json.Marshal(comm)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoryCommunicationCreated, data), nil
}

func ParseStoryCommunicationCreatedPayload(task *asynq.Task) (*domain.Communication, error) {
	var comm domain.Communication
	if err := json.Unmarshal(task.Payload(), &comm); err != nil {
		return nil, err
	}
	return &comm, nil
}
