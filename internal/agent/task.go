// Package agent runs the fixed inventory-analysis pipeline: three named
// tasks executed in order against one objective, each dispatched to an
// analysis operation by keyword or to a generic backend call.
package agent

import "errors"

// Status of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Task is one fixed step of the pipeline.
type Task struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// State of a run.
type State int

const (
	NotStarted State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Fixed task names, in execution order.
const (
	TaskWeatherHoliday = "天气与节假日影响分析"
	TaskSocial         = "社交媒体趋势分析"
	TaskStrategy       = "库存策略综合制定"
)

// FixedTasks is the pipeline's task list. The order is policy, not derived
// from the objective.
var FixedTasks = []string{TaskWeatherHoliday, TaskSocial, TaskStrategy}

// ErrorPrefix opens the text recorded for a failed task.
const ErrorPrefix = "错误:"

// ErrEmptyObjective is returned when the objective has no product token.
var ErrEmptyObjective = errors.New("objective is empty")

// AnalysisResult is the output of one successful task.
type AnalysisResult struct {
	TaskName string `json:"task_name"`
	Text     string `json:"text"`
}
