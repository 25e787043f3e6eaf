package sync

import "github.com/tildaslashalef/assetsync/internal/synchronizer"

type (
	// SyncStartMsg is the initial message sent to the model
	SyncStartMsg struct{}

	// SyncCompleteMsg is sent once the session has finished
	SyncCompleteMsg struct {
		Result   *synchronizer.Result
		Imported []string // layer files imported after a layer sync
		Err      error    // every failure of the session combined
	}
)
