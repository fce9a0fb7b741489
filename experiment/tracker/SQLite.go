package tracker

import (
	"github.com/samuelfneumann/ddpgportfolio/store"
)

// SQLite stores every episode of a training run in the run history
// database
type SQLite struct {
	db    *store.Store
	runID string
}

// NewSQLite starts a new run in the database and returns a Tracker
// that stores the run's episodes
func NewSQLite(db *store.Store, config string) (*SQLite, error) {
	id, err := db.StartRun(config)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db, runID: id}, nil
}

// RunID returns the identifier of the tracked run
func (s *SQLite) RunID() string {
	return s.runID
}

// Track implements the Tracker interface
func (s *SQLite) Track(e EpisodeStats) error {
	return s.db.InsertEpisode(s.runID, store.Episode{
		Episode:    e.Episode,
		ActorLoss:  e.ActorLoss,
		CriticLoss: e.CriticLoss,
		Reward:     e.Reward,
		Entropy:    e.Entropy,
	})
}

// Save implements the Tracker interface by marking the run finished
func (s *SQLite) Save() error {
	return s.db.FinishRun(s.runID)
}
