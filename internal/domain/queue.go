package domain

// QueueEntry is one pending song. QueueID identifies the insertion, so the
// same song may sit in the queue more than once.
type QueueEntry struct {
	QueueID string `json:"queueId"`
	Song
	AddedBy string `json:"addedBy"`
}

// IsPermutationOf reports whether order holds exactly the queue ids of
// current, each once.
func IsPermutationOf(order, current []QueueEntry) bool {
	if len(order) != len(current) {
		return false
	}
	seen := make(map[string]int, len(current))
	for _, e := range current {
		seen[e.QueueID]++
	}
	for _, e := range order {
		if seen[e.QueueID] == 0 {
			return false
		}
		seen[e.QueueID]--
	}
	return true
}
