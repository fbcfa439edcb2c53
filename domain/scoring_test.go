package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	assert.Equal(t, 0, CalculateLevel(0))
	assert.Equal(t, 0, CalculateLevel(99))
	assert.Equal(t, 1, CalculateLevel(100))
	assert.Equal(t, 2, CalculateLevel(400))
	assert.Equal(t, 10, CalculateLevel(10000))
	assert.Equal(t, 0, CalculateLevel(-5))

	prev := 0
	for points := 0; points <= 5000; points += 7 {
		level := CalculateLevel(points)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestPointsForNextLevel(t *testing.T) {
	assert.Equal(t, 100, PointsForNextLevel(0))
	assert.Equal(t, 400, PointsForNextLevel(1))
}

func TestCalculateStoryPoint(t *testing.T) {
	tests := []struct {
		name                       string
		difficulty, workload, risk int
		subtasks                   int
		want                       int
	}{
		{"nearest above", 3, 3, 3, 2, 21},
		{"exact", 1, 1, 1, 1, 3},
		{"zero input", 0, 3, 3, 2, 0},
		{"no subtasks", 3, 3, 3, 0, 0},
		{"tie keeps lower", 1, 1, 2, 1, 3},
		{"beyond scale", 10, 10, 10, 5, 89},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateStoryPoint(tt.difficulty, tt.workload, tt.risk, tt.subtasks))
		})
	}
}

func TestPointsFormulas(t *testing.T) {
	due := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	task := &Task{StoryPoint: 21, DueDate: &due}

	assert.Equal(t, 23, OwnerPoints(task, due.Add(-time.Hour)))
	assert.Equal(t, 21, OwnerPoints(task, due))
	assert.Equal(t, 21, OwnerPoints(&Task{StoryPoint: 21}, due))

	assert.Equal(t, 2, CollaboratorPoints(&Task{StoryPoint: 10}))
	assert.Equal(t, 1, CollaboratorPoints(&Task{StoryPoint: 1}))
	assert.Equal(t, 1, CollaboratorPoints(&Task{StoryPoint: 0}))
	assert.Equal(t, 5, CollaboratorPoints(&Task{StoryPoint: 21}))
}
