package timeline

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/paths"
)

// Resolver maps clip source references to filesystem paths, falling back to
// the project's default source when a reference does not resolve.
type Resolver struct {
	// Root anchors relative references.
	Root string
	// DefaultPath is the project-level fallback source; empty when neither
	// the transcript nor the media metadata supplied a usable hint.
	DefaultPath string
}

// sourceHint is the subset of transcript.json / media/metadata.json that
// declares where the ingested source media lives.
type sourceHint struct {
	SourcePath string `json:"sourcePath"`
}

// NewResolver builds a resolver for the project, trying the transcript
// record's declared source first and the ingest metadata second. A project
// without either still gets a resolver; per-clip references may carry their
// own paths.
func NewResolver(pp paths.ProjectPaths) Resolver {
	r := Resolver{Root: pp.Root}
	for _, hintFile := range []string{pp.TranscriptFile, pp.MediaMetaFile} {
		if path := readSourceHint(hintFile); path != "" {
			r.DefaultPath = path
			break
		}
	}
	return r
}

func readSourceHint(hintFile string) string {
	raw, err := os.ReadFile(hintFile)
	if err != nil {
		return ""
	}
	var hint sourceHint
	if err := json.Unmarshal(raw, &hint); err != nil {
		return ""
	}
	declared := strings.TrimSpace(hint.SourcePath)
	if declared == "" {
		return ""
	}
	if exists, err := paths.FileExists(declared); err != nil || !exists {
		return ""
	}
	return declared
}

// Resolve decodes ref (plain path or file:// URI) and returns the existing
// file it points at. When the reference does not resolve it falls back to
// the project default; ok is false when neither resolves.
func (r Resolver) Resolve(ref string) (string, bool) {
	if path := r.resolveRef(ref); path != "" {
		return path, true
	}
	if r.DefaultPath != "" {
		return r.DefaultPath, true
	}
	return "", false
}

func (r Resolver) resolveRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		ref = u.Path
		if ref == "" {
			return ""
		}
	}

	candidate := ref
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.Root, candidate)
	}
	if exists, err := paths.FileExists(candidate); err == nil && exists {
		return candidate
	}
	return ""
}
