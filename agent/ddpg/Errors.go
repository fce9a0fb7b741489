package ddpg

import "errors"

// ErrEmptyReplay is returned when training is attempted before the
// replay buffer has been filled by pre-training
var ErrEmptyReplay = errors.New("replay buffer is empty, pre-train the " +
	"agent first")

// ErrBatchSize is returned when a batch or its importance-sampling
// weights do not have the configured batch size
var ErrBatchSize = errors.New("invalid batch size")
