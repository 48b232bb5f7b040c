package paths

import (
	"path/filepath"
	"testing"
)

func TestResolveRequiresProjectID(t *testing.T) {
	if _, err := Resolve(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty project id")
	}
}

func TestResolveLayout(t *testing.T) {
	dataDir := t.TempDir()
	pp, err := Resolve(dataDir, "proj-123")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if pp.Root != filepath.Join(dataDir, "proj-123") {
		t.Errorf("root = %q", pp.Root)
	}
	if pp.TimelineFile != filepath.Join(pp.Root, "timeline.json") {
		t.Errorf("timeline = %q", pp.TimelineFile)
	}
	if pp.HistoryFile != filepath.Join(pp.Root, "renders", "history.json") {
		t.Errorf("history = %q", pp.HistoryFile)
	}
	if pp.MediaMetaFile != filepath.Join(pp.Root, "media", "metadata.json") {
		t.Errorf("media metadata = %q", pp.MediaMetaFile)
	}
}

func TestOutputFile(t *testing.T) {
	pp, err := Resolve(t.TempDir(), "proj-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	cases := []struct {
		name string
		want string
	}{
		{"final", "final.mp4"},
		{"clip.mp4", "clip.mp4"},
		{"../escape", "escape.mp4"},
		{"", "final.mp4"},
	}
	for _, tc := range cases {
		got := pp.OutputFile(tc.name)
		if got != filepath.Join(pp.RendersDir, tc.want) {
			t.Errorf("OutputFile(%q) = %q, want base %q", tc.name, got, tc.want)
		}
	}
}

func TestWorkDirIsRunScoped(t *testing.T) {
	pp, err := Resolve(t.TempDir(), "proj-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	a := pp.WorkDir("run-a")
	b := pp.WorkDir("run-b")
	if a == b {
		t.Fatal("work dirs for distinct runs must differ")
	}
	if filepath.Dir(a) != pp.RendersDir {
		t.Errorf("work dir %q not under renders dir", a)
	}
}
