package tracker

import "errors"

// multiTracker sends every EpisodeStats to each of a list of Trackers.
// multiTracker itself is a Tracker.
type multiTracker struct {
	trackers []Tracker
}

// Register combines Trackers into a single Tracker. Track and Save are
// called on every registered Tracker in order, and all errors are
// returned joined together.
func Register(trackers ...Tracker) Tracker {
	return &multiTracker{trackers: trackers}
}

// Track implements the Tracker interface
func (m *multiTracker) Track(s EpisodeStats) error {
	var errs []error
	for _, t := range m.trackers {
		if err := t.Track(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save implements the Tracker interface
func (m *multiTracker) Save() error {
	var errs []error
	for _, t := range m.trackers {
		if err := t.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
