package domain

// RequirementType names the counter an achievement is measured against.
type RequirementType string

const (
	RequireTasksCompleted      RequirementType = "tasksCompleted"
	RequireHelpedFriends       RequirementType = "helpedFriends"
	RequireTasksBeforeDeadline RequirementType = "tasksBeforeDeadline"
	RequirePoints              RequirementType = "points"
)

type Achievement struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Requirement RequirementType `json:"requirementType"`
	Threshold   int             `json:"threshold"`
	Points      int             `json:"points"`
}

// Achievements is the fixed catalog, evaluated in order.
var Achievements = []Achievement{
	{ID: "first-task", Name: "First Task", Description: "Finish your first task", Requirement: RequireTasksCompleted, Threshold: 1, Points: 10},
	{ID: "team-player", Name: "Team Player", Description: "Help friends finish 10 tasks", Requirement: RequireHelpedFriends, Threshold: 10, Points: 50},
	{ID: "speed-demon", Name: "Speed Demon", Description: "Finish 5 tasks before their deadline", Requirement: RequireTasksBeforeDeadline, Threshold: 5, Points: 30},
	{ID: "story-master", Name: "Story Master", Description: "Collect 100 story points", Requirement: RequirePoints, Threshold: 100, Points: 100},
}

// FindAchievement looks up a catalog entry by id.
func FindAchievement(id string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Met evaluates the "count >= threshold" requirement against a user.
func (a Achievement) Met(stats Stats, points int) bool {
	switch a.Requirement {
	case RequireTasksCompleted:
		return stats.TasksCompleted >= a.Threshold
	case RequireHelpedFriends:
		return stats.HelpedFriends >= a.Threshold
	case RequireTasksBeforeDeadline:
		return stats.TasksBeforeDeadline >= a.Threshold
	case RequirePoints:
		return points >= a.Threshold
	default:
		return false
	}
}
