package domain

import (
	"math"
	"time"
)

// StoryPointScale is the Fibonacci scale story points are rounded onto.
var StoryPointScale = []int{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89}

// CalculateLevel derives the level from accumulated points.
func CalculateLevel(points int) int {
	if points <= 0 {
		return 0
	}
	return int(math.Floor(math.Sqrt(float64(points) / 100)))
}

// PointsForNextLevel is the total needed to reach level+1.
func PointsForNextLevel(level int) int {
	next := level + 1
	return next * next * 100
}

// CalculateStoryPoint rounds (difficulty+workload+risk)*subtasks onto the
// scale. Ties resolve to the lower value.
func CalculateStoryPoint(difficulty, workload, risk, subtaskCount int) int {
	if difficulty == 0 || workload == 0 || risk == 0 || subtaskCount == 0 {
		return 0
	}
	raw := (difficulty + workload + risk) * subtaskCount

	closest := StoryPointScale[0]
	minDiff := absInt(raw - closest)
	for _, fib := range StoryPointScale {
		if diff := absInt(raw - fib); diff < minDiff {
			minDiff = diff
			closest = fib
		}
	}
	return closest
}

// FinishedEarly reports whether at is strictly before the due date.
func FinishedEarly(task *Task, at time.Time) bool {
	return task != nil && task.DueDate != nil && at.Before(*task.DueDate)
}

// OwnerPoints is the story point value plus a 10% early bonus.
func OwnerPoints(task *Task, finalizedAt time.Time) int {
	points := task.StoryPoint
	if FinishedEarly(task, finalizedAt) {
		points += int(math.Floor(float64(task.StoryPoint) * 0.1))
	}
	return points
}

// CollaboratorPoints is 20% of the story point value, rounded up, at least 1.
func CollaboratorPoints(task *Task) int {
	points := int(math.Ceil(float64(task.StoryPoint) * 0.2))
	if points < 1 {
		return 1
	}
	return points
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
