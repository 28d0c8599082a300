package api

import (
	"errors"
	"net/http"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
	"github.com/decentraminds/osmosis-streaming-driver/internal/tasks"
)

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.taskManager.ListStatus(), http.StatusOK)
}

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

// handleTriggerTask starts a task by name outside its schedule.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	if err := s.taskManager.Trigger(r.PathValue("name")); err != nil {
		taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: "triggered",
	}, http.StatusAccepted)
}

// handleLogsForTask returns the log lines of the last run of a task.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	logs, err := s.taskManager.GetLogs(r.PathValue("name"))
	if err != nil {
		taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}

func taskError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound tasks.TaskNotFoundError
	if errors.As(err, &notFound) {
		presenter.Error(w, r, err.Error(), http.StatusNotFound)
		return
	}
	presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
}
