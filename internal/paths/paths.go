package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectPaths captures canonical locations for a clipforge project.
type ProjectPaths struct {
	DataDir        string
	ProjectID      string
	Root           string
	ConfigFile     string
	TimelineFile   string
	TranscriptFile string
	MediaMetaFile  string
	SubtitlesFile  string
	JobFile        string
	RendersDir     string
	HistoryFile    string
	TelemetryDir   string
	TelemetryDB    string
	LogsDir        string
}

// Resolve determines the project layout from the optional --data-dir flag
// and the required project identifier. An empty dataDir falls back to
// ./data under the current working directory.
func Resolve(dataDir, projectID string) (ProjectPaths, error) {
	if projectID == "" {
		return ProjectPaths{}, fmt.Errorf("project identifier is required")
	}

	if dataDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ProjectPaths{}, fmt.Errorf("resolve working directory: %w", err)
		}
		dataDir = filepath.Join(cwd, "data")
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return ProjectPaths{}, fmt.Errorf("resolve data dir: %w", err)
	}

	return newProjectPaths(abs, projectID), nil
}

func newProjectPaths(dataDir, projectID string) ProjectPaths {
	root := filepath.Join(dataDir, projectID)
	rendersDir := filepath.Join(root, "renders")
	telemetryDir := filepath.Join(root, "telemetry")
	return ProjectPaths{
		DataDir:        dataDir,
		ProjectID:      projectID,
		Root:           root,
		ConfigFile:     filepath.Join(dataDir, "clipforge.yaml"),
		TimelineFile:   filepath.Join(root, "timeline.json"),
		TranscriptFile: filepath.Join(root, "transcript.json"),
		MediaMetaFile:  filepath.Join(root, "media", "metadata.json"),
		SubtitlesFile:  filepath.Join(root, "subtitles", "subtitles.srt"),
		JobFile:        filepath.Join(root, "render-job.json"),
		RendersDir:     rendersDir,
		HistoryFile:    filepath.Join(rendersDir, "history.json"),
		TelemetryDir:   telemetryDir,
		TelemetryDB:    filepath.Join(telemetryDir, "telemetry.db"),
		LogsDir:        filepath.Join(root, "logs"),
	}
}

// OutputFile returns the final artifact path for the given output name.
// The name is reduced to its base so outputs always land inside renders/.
func (p ProjectPaths) OutputFile(outputName string) string {
	name := filepath.Base(outputName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "final.mp4"
	}
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return filepath.Join(p.RendersDir, name)
}

// WorkDir returns the run-scoped temporary directory for intermediate
// artifacts. Each run owns its own directory so concurrent and historical
// runs of the same project never collide.
func (p ProjectPaths) WorkDir(runID string) string {
	return filepath.Join(p.RendersDir, "tmp-"+runID)
}

// EnsureRunDirs creates the directories a render run writes into.
func (p ProjectPaths) EnsureRunDirs(runID string) error {
	dirs := []string{p.RendersDir, p.TelemetryDir, p.LogsDir, p.WorkDir(runID)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
