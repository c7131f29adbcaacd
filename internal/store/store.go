// Package store owns the on-disk install root: bin/ for executables and
// helpers/<app>/ for metadata, documentation and app data. It is the only
// package that writes under the install root.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pynosaur/pget/internal/config"
	"github.com/pynosaur/pget/internal/log"
)

// Record is the persisted state of one installed app.
type Record struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	InstalledVia string    `json:"installed_via"` // "binary" or "source"
	InstallTime  time.Time `json:"install_time"`
	BinaryPath   string    `json:"binary_path"`
	DocPath      string    `json:"doc_path,omitempty"`
}

// CorruptInstallError means an app's metadata file exists but cannot be
// parsed. The install is in an unknown state.
type CorruptInstallError struct {
	Name string
	Path string
	Err  error
}

func (e *CorruptInstallError) Error() string {
	return fmt.Sprintf("corrupt install metadata for %s at %s: %v", e.Name, e.Path, e.Err)
}

func (e *CorruptInstallError) Unwrap() error { return e.Err }

// Suggestion returns an actionable hint for the user.
func (e *CorruptInstallError) Suggestion() string {
	return fmt.Sprintf("Run 'pget remove %s' and reinstall to repair it", e.Name)
}

// Store reads and writes installed app records under one install root.
type Store struct {
	cfg    *config.Config
	logger log.Logger
}

// New creates a store over the given install root configuration.
func New(cfg *config.Config, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Store{cfg: cfg, logger: logger}
}

// Write commits an installed app: the executable to bin/<name>, the
// record to helpers/<name>/.pget-metadata.json, and any doc files to
// helpers/<name>/doc/. Both the binary and the metadata are staged to
// temporary files and renamed into place as the final step, so an
// interruption never exposes a half-written install.
func (s *Store) Write(rec Record, binary []byte, doc map[string][]byte) error {
	if rec.Name == "" {
		return fmt.Errorf("record has no app name")
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return err
	}

	appDir := s.cfg.AppDir(rec.Name)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", appDir, err)
	}

	rec.BinaryPath = s.cfg.BinaryPath(rec.Name)
	if rec.InstallTime.IsZero() {
		rec.InstallTime = time.Now().UTC()
	}

	if len(doc) > 0 {
		docDir := s.cfg.DocDir(rec.Name)
		if err := os.MkdirAll(docDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", docDir, err)
		}
		for name, data := range doc {
			if err := os.WriteFile(filepath.Join(docDir, name), data, 0o644); err != nil {
				return fmt.Errorf("failed to write doc file %s: %w", name, err)
			}
		}
		rec.DocPath = docDir
	}

	// Stage both files before renaming either, so the two renames are
	// the only irreversible steps and happen back to back.
	binTmp, err := stageFile(s.cfg.BinDir, ".pget-bin-*", binary, 0o755)
	if err != nil {
		return fmt.Errorf("failed to stage binary: %w", err)
	}
	defer os.Remove(binTmp)

	metaBytes, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	metaTmp, err := stageFile(appDir, ".pget-meta-*", metaBytes, 0o644)
	if err != nil {
		return fmt.Errorf("failed to stage metadata: %w", err)
	}
	defer os.Remove(metaTmp)

	if err := os.Rename(binTmp, rec.BinaryPath); err != nil {
		return fmt.Errorf("failed to install binary: %w", err)
	}
	if err := os.Rename(metaTmp, s.cfg.MetadataPath(rec.Name)); err != nil {
		return fmt.Errorf("failed to install metadata: %w", err)
	}

	s.logger.Debug("committed install", "app", rec.Name, "version", rec.Version, "via", rec.InstalledVia)
	return nil
}

// Read returns the record for an installed app, or nil if the app is not
// installed. A present but unparseable metadata file, or a record whose
// binary has vanished from bin/, is a *CorruptInstallError.
func (s *Store) Read(name string) (*Record, error) {
	path := s.cfg.MetadataPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &CorruptInstallError{Name: name, Path: path, Err: err}
	}

	binPath := rec.BinaryPath
	if binPath == "" {
		binPath = s.cfg.BinaryPath(name)
	}
	if _, err := os.Stat(binPath); err != nil {
		if os.IsNotExist(err) {
			return nil, &CorruptInstallError{
				Name: name,
				Path: path,
				Err:  fmt.Errorf("record exists but binary %s does not", binPath),
			}
		}
		return nil, fmt.Errorf("failed to stat binary for %s: %w", name, err)
	}

	if rec.Version == "" {
		if v := s.docVersion(name); v != "" {
			rec.Version = v
		}
	}
	return &rec, nil
}

// docVersion recovers a version from the app's doc YAML when the record
// itself lacks one. Older installs recorded the version only there.
func (s *Store) docVersion(name string) string {
	data, err := os.ReadFile(filepath.Join(s.cfg.DocDir(name), name+".yaml"))
	if err != nil {
		return ""
	}
	var doc struct {
		Version string `yaml:"VERSION"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("unparseable doc file", "app", name, "error", err)
		return ""
	}
	return doc.Version
}

// List returns all installed apps ordered by install time, most recent
// last, ties broken by name. Corrupt installs are skipped with a warning
// so one broken app does not hide the rest.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.cfg.HelpersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read install root: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.Read(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable install", "app", entry.Name(), "error", err)
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].InstallTime.Equal(records[j].InstallTime) {
			return records[i].Name < records[j].Name
		}
		return records[i].InstallTime.Before(records[j].InstallTime)
	})
	return records, nil
}

// Remove deletes bin/<name> and the entire helpers/<name>/ tree. It is
// idempotent: removing an app that was never installed succeeds.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.cfg.BinaryPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove binary for %s: %w", name, err)
	}
	if err := os.RemoveAll(s.cfg.AppDir(name)); err != nil {
		return fmt.Errorf("failed to remove app directory for %s: %w", name, err)
	}
	s.logger.Debug("removed install", "app", name)
	return nil
}

// stageFile writes data to a fresh temporary file in dir with the given
// permissions and returns its path.
func stageFile(dir, pattern string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
