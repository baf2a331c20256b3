// Package jobapps implements the daily job-application counter. The counter
// is capped at DailyGoal and starts over on the first access of a new day.
package jobapps

// DailyGoal is the cap on applications counted per day.
const DailyGoal = 10

// State is embedded in the persisted planner snapshot, hence the flat JSON
// names.
type State struct {
	Count         int    `json:"jobAppsCount"`
	LastResetDate string `json:"lastJobAppsReset"`
}

// Refresh zeroes the count when today differs from the last reset date and
// reports whether the state changed.
func (s *State) Refresh(today string) bool {
	if s.LastResetDate == today {
		return false
	}
	s.Count = 0
	s.LastResetDate = today
	return true
}

// Increment applies the daily reset and then adds one application unless
// the goal is already reached. It reports whether the state changed.
func (s *State) Increment(today string) bool {
	changed := s.Refresh(today)
	if s.Count < DailyGoal {
		s.Count++
		changed = true
	}
	return changed
}

// Reset starts the day over.
func (s *State) Reset(today string) {
	s.Count = 0
	s.LastResetDate = today
}

// Fraction returns count/DailyGoal for proportional display.
func (s State) Fraction() float64 {
	return float64(s.Count) / DailyGoal
}
