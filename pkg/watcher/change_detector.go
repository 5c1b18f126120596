package watcher

// ChangeAnalysis describes what changed and what has to be reloaded before
// the network is recomputed.
type ChangeAnalysis struct {
	ReloadConfig  bool
	ReloadRecords bool
	ChangedFiles  []string
}

// AnalyzeChanges determines what needs reloading based on what changed
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeConfig:
		// The config may point at a different records file
		analysis.ReloadConfig = true
		analysis.ReloadRecords = true

	case ChangeTypeRecords:
		analysis.ReloadRecords = true
	}

	return analysis
}
