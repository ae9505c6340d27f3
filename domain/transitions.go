package domain

// Legal job state changes. Done and Failed have no entries: nothing leaves them.
var transitions = map[JobState][]JobState{
	Queued:   {Running, Failed},
	Running:  {Paused, Stopping, Done, Failed},
	Paused:   {Running, Stopping, Done, Failed},
	Stopping: {Done, Failed},
}

func ValidTransition(from, to JobState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
