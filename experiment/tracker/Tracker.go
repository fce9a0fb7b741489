// Package tracker implements Trackers, which record the statistics of
// each training episode
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// EpisodeStats summarises one training episode
type EpisodeStats struct {
	Episode    int
	ActorLoss  float64 // Mean actor loss over the episode's iterations
	CriticLoss float64 // Mean critic loss over the episode's iterations
	Reward     float64 // Sum of sampled rewards divided by the batch size
	Entropy    float64 // Policy entropy at the last iteration
}

// Interface Tracker keeps track of episode statistics and saves them
// after training has finished
type Tracker interface {
	Track(s EpisodeStats) error
	Save() error
}

// History keeps every tracked EpisodeStats in memory. If a filename is
// given, Save writes the history to that file with gob encoding.
type History struct {
	filename string
	stats    []EpisodeStats
}

// NewHistory returns a new History
func NewHistory(filename string) *History {
	return &History{filename: filename}
}

// Track implements the Tracker interface
func (h *History) Track(s EpisodeStats) error {
	h.stats = append(h.stats, s)
	return nil
}

// Save implements the Tracker interface
func (h *History) Save() error {
	if h.filename == "" {
		return nil
	}
	file, err := os.Create(h.filename)
	if err != nil {
		return fmt.Errorf("save: could not create data file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(h.stats); err != nil {
		return fmt.Errorf("save: could not encode data: %w", err)
	}
	return nil
}

// Data returns a copy of the tracked statistics
func (h *History) Data() []EpisodeStats {
	out := make([]EpisodeStats, len(h.stats))
	copy(out, h.stats)
	return out
}

// LoadData loads and returns the data saved by a History
func LoadData(filename string) ([]EpisodeStats, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %w",
			err)
	}
	defer file.Close()

	var data []EpisodeStats
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %w", err)
	}
	return data, nil
}
