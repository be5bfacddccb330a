package docproc

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/model"
)

// loadManifest reads the manifest at path, returning an empty Manifest if
// the file does not yet exist — the manifest's absence means "nothing has
// ever been extracted," not an error.
func loadManifest(path string) (*model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Manifest{Documents: map[string]model.ManifestEntry{}}, nil
		}
		return nil, eris.Wrap(err, "docproc: read manifest")
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "docproc: parse manifest")
	}
	if m.Documents == nil {
		m.Documents = map[string]model.ManifestEntry{}
	}
	return &m, nil
}

// saveManifest and saveExtractionRecord both write via a temp-file-then-
// rename so a process killed mid-write never leaves a half-written
// manifest or extraction record for the next run to trip over.
func saveManifest(path string, m *model.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "docproc: marshal manifest")
	}
	return atomicWriteFile(path, data)
}

func saveExtractionRecord(path string, rec *model.ExtractionRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return eris.Wrap(err, "docproc: marshal extraction record")
	}
	return atomicWriteFile(path, data)
}

func loadExtractionRecord(path string) (*model.ExtractionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "docproc: read extraction record")
	}
	var rec model.ExtractionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "docproc: parse extraction record")
	}
	return &rec, nil
}

func atomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "docproc: create parent dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "docproc: write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "docproc: rename into place")
	}
	return nil
}
