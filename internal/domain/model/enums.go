package model

// Grade is the reviewer's overall verdict on a commit.
type Grade string

const (
	GradeGood  Grade = "good"
	GradeMixed Grade = "mixed"
	GradeBad   Grade = "bad"
)

// SchedulerState is the lifecycle phase of the update scheduler.
type SchedulerState string

const (
	SchedulerIdle           SchedulerState = "idle"
	SchedulerInitialLoading SchedulerState = "initial_loading"
	SchedulerRunning        SchedulerState = "running"
)
