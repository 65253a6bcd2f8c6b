package router

import "sync"

const historyWindow = 20

// UserHistory tracks each user's explicit model preference and their
// recent selections, for the UserPreference strategy's "most-frequent
// historical selection (last 20)" fallback.
type UserHistory struct {
	mu          sync.Mutex
	preferred   map[string]string
	recent      map[string][]string // ring of the last historyWindow selections
}

// NewUserHistory builds an empty UserHistory tracker.
func NewUserHistory() *UserHistory {
	return &UserHistory{
		preferred: make(map[string]string),
		recent:    make(map[string][]string),
	}
}

// SetPreferred records userID's explicit model preference.
func (h *UserHistory) SetPreferred(userID, modelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.preferred[userID] = modelID
}

// Preferred returns userID's explicit preference, if set.
func (h *UserHistory) Preferred(userID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.preferred[userID]
	return m, ok
}

// RecordSelection appends modelID to userID's recent-selection window,
// evicting the oldest entry once the window exceeds historyWindow.
func (h *UserHistory) RecordSelection(userID, modelID string) {
	if userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.recent[userID], modelID)
	if len(list) > historyWindow {
		list = list[len(list)-historyWindow:]
	}
	h.recent[userID] = list
}

// MostFrequent returns the most-frequently selected model in userID's
// recent window, or ("", false) if the user has no history.
func (h *UserHistory) MostFrequent(userID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.recent[userID]
	if len(list) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(list))
	for _, m := range list {
		counts[m]++
	}
	best, bestCount := "", 0
	// Iterate list (not the map) so ties break toward the most recently
	// seen model, a deterministic tiebreak instead of map-order chance.
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if counts[m] > bestCount {
			best, bestCount = m, counts[m]
		}
	}
	return best, best != ""
}
