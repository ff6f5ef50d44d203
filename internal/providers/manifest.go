package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is one entry in a provider's manifest.json.
type ManifestFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Manifest lists the files a local provider directory must contain.
type Manifest struct {
	Files []ManifestFile `json:"files"`
}

var unsafeExtensions = map[string]bool{
	".pt":  true,
	".pth": true,
}

// LoadManifest reads and parses manifest.json from dir.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest.json is not valid JSON: %w", err)
	}
	return &m, nil
}

// VerifyManifest checks every entry's path for traversal/absolute-path
// safety and disallowed extensions (unless allowUnsafe is set), then
// verifies its SHA-256 digest against the recorded expectation.
func VerifyManifest(dir string, m *Manifest, allowUnsafe bool) (missing []string, err error) {
	for _, f := range m.Files {
		if err := validatePath(f.Path, allowUnsafe); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, f.Path)
		digest, err := sha256File(full)
		if err != nil {
			missing = append(missing, f.Path)
			continue
		}
		if !strings.EqualFold(digest, f.SHA256) {
			missing = append(missing, f.Path)
		}
	}
	return missing, nil
}

func validatePath(path string, allowUnsafe bool) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("manifest entry %q is an absolute path", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("manifest entry %q traverses outside its directory", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if unsafeExtensions[ext] && !allowUnsafe {
		return fmt.Errorf("manifest entry %q has a disallowed extension %q", path, ext)
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
