package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"stemfetch/internal/fileutil"
)

// FileName is the manifest document name at the recording directory root.
const FileName = "manifest.json"

// StageStatus tracks one pipeline stage's progress inside the manifest.
// It replaces separate sentinel marker files: an in-progress status found on
// resume signals a crashed prior run.
type StageStatus string

const (
	StageNotStarted StageStatus = "not-started"
	StageInProgress StageStatus = "in-progress"
	StageDone       StageStatus = "done"
)

// Input records the recording identity the directory belongs to.
type Input struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Artifacts records the directory layout for the run.
type Artifacts struct {
	RecordDir    string `json:"record_dir"`
	DownloadsDir string `json:"downloads_dir"`
	WorkDir      string `json:"work_dir"`
	FinalDir     string `json:"final_dir"`
}

// Download records the remote artifact and its local destination.
type Download struct {
	RemoteFile   string `json:"remote_file"`
	LocalFile    string `json:"local_file"`
	URL          string `json:"url"`
	ExpectedSize int64  `json:"expected_size"`
	Completed    bool   `json:"completed"`
}

// Final records the post-processed artifact.
type Final struct {
	File   string `json:"file"`
	Format string `json:"format"`
}

// Transcription records the ASR configuration used and produced artifacts.
type Transcription struct {
	Backend   string   `json:"backend"`
	Model     string   `json:"model"`
	Artifacts []string `json:"artifacts"`
}

// Document is the persistent manifest. Sections are pointers so a patch can
// distinguish "replace this section" from "leave it alone"; consumers must
// tolerate missing sections.
type Document struct {
	Input         *Input                 `json:"input,omitempty"`
	Artifacts     *Artifacts             `json:"artifacts,omitempty"`
	Download      *Download              `json:"download,omitempty"`
	Final         *Final                 `json:"final,omitempty"`
	Transcription *Transcription         `json:"transcription,omitempty"`
	Stages        map[string]StageStatus `json:"stages,omitempty"`
}

// Stage returns the recorded status for a stage, defaulting to not-started.
func (d Document) Stage(name string) StageStatus {
	if status, ok := d.Stages[name]; ok && status != "" {
		return status
	}
	return StageNotStarted
}

// Path returns the manifest location inside a recording directory.
func Path(recordDir string) string {
	return filepath.Join(recordDir, FileName)
}

// Read loads the manifest for a recording directory. A missing or unparsable
// file yields an empty document: corruption is non-fatal and treated as
// "no prior state".
func Read(recordDir string) Document {
	data, err := os.ReadFile(Path(recordDir))
	if err != nil {
		return Document{}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}
	}
	return doc
}

// Update merges patch into the stored document and persists the result
// atomically (temp file then rename). Non-nil sections replace their
// counterparts; stage statuses merge per key; everything else is preserved.
func Update(recordDir string, patch Document) (Document, error) {
	doc := Read(recordDir)
	doc.merge(patch)
	if err := write(recordDir, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// SetStage records one stage's status, merged into the existing document.
func SetStage(recordDir, stage string, status StageStatus) (Document, error) {
	return Update(recordDir, Document{Stages: map[string]StageStatus{stage: status}})
}

func (d *Document) merge(patch Document) {
	if patch.Input != nil {
		d.Input = patch.Input
	}
	if patch.Artifacts != nil {
		d.Artifacts = patch.Artifacts
	}
	if patch.Download != nil {
		d.Download = patch.Download
	}
	if patch.Final != nil {
		d.Final = patch.Final
	}
	if patch.Transcription != nil {
		d.Transcription = patch.Transcription
	}
	if len(patch.Stages) > 0 {
		if d.Stages == nil {
			d.Stages = make(map[string]StageStatus, len(patch.Stages))
		}
		for stage, status := range patch.Stages {
			d.Stages[stage] = status
		}
	}
}

func write(recordDir string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(Path(recordDir), data, 0o644)
}
