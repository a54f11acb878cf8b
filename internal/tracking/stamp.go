package tracking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/trajbuild/internal/bridge"
	"github.com/goplus/trajbuild/internal/linkplan"
	"github.com/spf13/afero"
)

// Output directory layout:
//
//	outDir/
//	  .stamp.json      # last successful run
//	  cmake-build/     # CMake build tree
//	  native/          # install prefix: include/ lib/ bin/
//	  bridge/          # glue, objects and the bridge archive
const StampFile = ".stamp.json"

// Stamp records the last successful run.
type Stamp struct {
	RunID       string           `json:"run_id"`
	BuildTime   time.Time        `json:"build_time"`
	Fingerprint *Fingerprint     `json:"fingerprint"`
	Artifact    *bridge.Artifact `json:"artifact"`
	Plan        *linkplan.Plan   `json:"plan"`
}

// LoadStamp reads the stamp from outDir. A missing stamp returns
// (nil, nil).
func LoadStamp(fs afero.Fs, outDir string) (*Stamp, error) {
	data, err := afero.ReadFile(fs, filepath.Join(outDir, StampFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var st Stamp
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveStamp writes st to outDir.
func SaveStamp(fs afero.Fs, outDir string, st *Stamp) error {
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, filepath.Join(outDir, StampFile), data, 0o644)
}

// Fresh reports whether the bridge recorded in st can be reused for fp:
// the fingerprint matches and every output of the compile is still on
// disk.
func (st *Stamp) Fresh(fs afero.Fs, fp *Fingerprint) bool {
	if st == nil || st.Artifact == nil || !fp.Equal(st.Fingerprint) {
		return false
	}
	for _, p := range st.Artifact.Outputs() {
		if ok, err := afero.Exists(fs, p); err != nil || !ok {
			return false
		}
	}
	return true
}
