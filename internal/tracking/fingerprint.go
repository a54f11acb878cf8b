package tracking

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/qiniu/x/errors"
	"github.com/spf13/afero"
)

// Digest hashes parts into a hex string. Parts are length-prefixed, so
// ("ab", "c") and ("a", "bc") differ.
func Digest(parts ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is the content of the tracked set plus a digest of every
// setting the bridge is compiled with. Native is the TreeDigest of the
// installed headers, filled in once the native build has run.
type Fingerprint struct {
	Files    map[string]string `json:"files"`
	Settings string            `json:"settings"`
	Native   string            `json:"native,omitempty"`
}

// Snapshot hashes every path in s. Missing paths are reported together
// in one error.
func Snapshot(fs afero.Fs, s Set, settings string) (*Fingerprint, error) {
	fp := &Fingerprint{Files: make(map[string]string, len(s)), Settings: settings}
	var errs errors.List
	for _, p := range s {
		sum, err := hashFile(fs, p)
		if err != nil {
			if os.IsNotExist(err) {
				err = fmt.Errorf("tracked input %s does not exist", p)
			}
			errs.Add(err)
			continue
		}
		fp.Files[p] = sum
	}
	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return fp, nil
}

// TreeDigest hashes the relative path and content of every regular file
// under dir.
func TreeDigest(fs afero.Fs, dir string) (string, error) {
	var parts []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() {
			return err
		}
		sum, err := hashFile(fs, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parts = append(parts, filepath.ToSlash(rel), sum)
		return nil
	})
	if err != nil {
		return "", err
	}
	return Digest(parts...), nil
}

func hashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Diff returns the reasons fp differs from old, sorted. A nil old
// fingerprint differs from everything.
func (fp *Fingerprint) Diff(old *Fingerprint) []string {
	if old == nil {
		return []string{"no previous build"}
	}
	var out []string
	if fp.Settings != old.Settings {
		out = append(out, "settings changed")
	}
	if fp.Native != old.Native {
		out = append(out, "native headers changed")
	}
	for p, sum := range fp.Files {
		prev, ok := old.Files[p]
		switch {
		case !ok:
			out = append(out, "added "+p)
		case prev != sum:
			out = append(out, "modified "+p)
		}
	}
	for p := range old.Files {
		if _, ok := fp.Files[p]; !ok {
			out = append(out, "removed "+p)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports whether fp and old describe the same inputs.
func (fp *Fingerprint) Equal(old *Fingerprint) bool {
	return len(fp.Diff(old)) == 0
}
