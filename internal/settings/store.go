// Package settings persists user-facing configuration between sessions: the
// last-used synthesis parameters, named presets, text templates, input
// history, and directory preferences, all in one JSON document.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultPresetName = "Default"
	historyLimit      = 10
	historyMinRunes   = 5
	backupMinRunes    = 10
	backupFileName    = "text_backup.txt"
	filePermissions   = 0o600
	jsonIndent        = "  "
)

// Static errors.
var (
	ErrDefaultPresetProtected = errors.New("the Default preset cannot be renamed or deleted")
	ErrPresetNotFound         = errors.New("preset not found")
	ErrNoBackup               = errors.New("no text backup exists")
)

// Preset is a named snapshot of synthesis settings.
type Preset struct {
	Engine      string  `json:"engine"`
	Speed       float64 `json:"speed"`
	Volume      float64 `json:"volume"`
	Pitch       float64 `json:"pitch"`
	Intonation  float64 `json:"intonation"`
	PreSilence  float64 `json:"pre_silence"`
	PostSilence float64 `json:"post_silence"`
	Format      string  `json:"format"`
}

// Settings is the persisted document. Unknown keys in an existing file are
// ignored on load and dropped on the next save.
type Settings struct {
	Engine          string            `json:"engine"`
	SpeakerID       int               `json:"speaker_id"`
	Speed           float64           `json:"speed"`
	Volume          float64           `json:"volume"`
	Pitch           float64           `json:"pitch"`
	Intonation      float64           `json:"intonation"`
	PreSilence      float64           `json:"pre_silence"`
	PostSilence     float64           `json:"post_silence"`
	OutputDir       string            `json:"output_dir"`
	RecordingDir    string            `json:"recording_dir"`
	TranscriptDir   string            `json:"transcript_dir"`
	Format          string            `json:"format"`
	FilenamePattern string            `json:"filename_pattern"`
	SeqDigits       int               `json:"seq_digits"`
	Prefix          string            `json:"prefix"`
	Language        string            `json:"language"`
	Presets         map[string]Preset `json:"presets"`
	Templates       map[string]string `json:"templates"`
	TextHistory     []string          `json:"text_history"`
}

// defaultPreset is the snapshot the always-present Default preset starts
// from.
func defaultPreset() Preset {
	return Preset{
		Engine:      "clone",
		Speed:       1.0,
		Volume:      1.0,
		Pitch:       0.0,
		Intonation:  1.0,
		PreSilence:  0.1,
		PostSilence: 0.1,
		Format:      "wav",
	}
}

// Store owns the settings document and its file. All mutating methods save
// immediately, so a crash never loses more than the in-flight change.
type Store struct {
	path string
	mu   sync.Mutex
	data Settings
}

// Open loads the settings document at path, creating an in-memory default
// when the file does not exist yet. The Default preset is guaranteed to be
// present after Open returns.
func Open(path string) (*Store, error) {
	store := &Store{
		path: path,
		data: Settings{},
	}

	raw, readErr := os.ReadFile(path)

	switch {
	case readErr == nil:
		unmarshalErr := json.Unmarshal(raw, &store.data)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, unmarshalErr)
		}
	case os.IsNotExist(readErr):
		// First run: start from an empty document.
	default:
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, readErr)
	}

	if store.data.Presets == nil {
		store.data.Presets = make(map[string]Preset)
	}

	if store.data.Templates == nil {
		store.data.Templates = make(map[string]string)
	}

	if _, ok := store.data.Presets[defaultPresetName]; !ok {
		store.data.Presets[defaultPresetName] = defaultPreset()
	}

	return store, nil
}

// Snapshot returns a copy of the current document.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyLocked()
}

// Update applies fn to the document and saves the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.data)

	return s.saveLocked()
}

// SaveToHistory records a generated text at the front of the history. Texts
// shorter than five characters are ignored; a repeated text moves to the
// front instead of duplicating; the list never exceeds ten entries.
func (s *Store) SaveToHistory(text string) error {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < historyMinRunes {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]string, 0, historyLimit)
	history = append(history, text)

	for _, entry := range s.data.TextHistory {
		if entry == text {
			continue
		}

		history = append(history, entry)

		if len(history) == historyLimit {
			break
		}
	}

	s.data.TextHistory = history

	return s.saveLocked()
}

// History returns the stored history, most recent first.
func (s *Store) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.data.TextHistory...)
}

// SetPreset stores a snapshot under name, creating or overwriting it.
func (s *Store) SetPreset(name string, preset Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Presets[name] = preset

	return s.saveLocked()
}

// Preset returns the snapshot stored under name.
func (s *Store) Preset(name string) (Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, ok := s.data.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}

	return preset, nil
}

// RenamePreset moves a snapshot to a new name. The Default preset is
// protected.
func (s *Store) RenamePreset(oldName, newName string) error {
	if oldName == defaultPresetName {
		return ErrDefaultPresetProtected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	preset, ok := s.data.Presets[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, oldName)
	}

	delete(s.data.Presets, oldName)
	s.data.Presets[newName] = preset

	return s.saveLocked()
}

// DeletePreset removes a snapshot. The Default preset is protected.
func (s *Store) DeletePreset(name string) error {
	if name == defaultPresetName {
		return ErrDefaultPresetProtected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.data.Presets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}

	delete(s.data.Presets, name)

	return s.saveLocked()
}

// SetTemplate stores a reusable text under name.
func (s *Store) SetTemplate(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Templates[name] = text

	return s.saveLocked()
}

// DeleteTemplate removes a stored text.
func (s *Store) DeleteTemplate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data.Templates, name)

	return s.saveLocked()
}

// BackupText writes the working text to the backup file beside the settings
// document. Texts of ten characters or fewer are not worth a backup and are
// skipped.
func (s *Store) BackupText(text string) error {
	text = strings.TrimSpace(text)
	if len([]rune(text)) <= backupMinRunes {
		return nil
	}

	writeErr := os.WriteFile(s.backupPath(), []byte(text), filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write text backup: %w", writeErr)
	}

	return nil
}

// RestoreBackup returns the last backed-up working text.
func (s *Store) RestoreBackup() (string, error) {
	raw, readErr := os.ReadFile(s.backupPath())
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", ErrNoBackup
		}

		return "", fmt.Errorf("failed to read text backup: %w", readErr)
	}

	return string(raw), nil
}

func (s *Store) backupPath() string {
	return filepath.Join(filepath.Dir(s.path), backupFileName)
}

// copyLocked deep-copies the document so callers cannot alias internal maps.
func (s *Store) copyLocked() Settings {
	copied := s.data

	copied.Presets = make(map[string]Preset, len(s.data.Presets))
	for name, preset := range s.data.Presets {
		copied.Presets[name] = preset
	}

	copied.Templates = make(map[string]string, len(s.data.Templates))
	for name, text := range s.data.Templates {
		copied.Templates[name] = text
	}

	copied.TextHistory = append([]string(nil), s.data.TextHistory...)

	return copied
}

func (s *Store) saveLocked() error {
	raw, marshalErr := json.MarshalIndent(s.data, "", jsonIndent)
	if marshalErr != nil {
		return fmt.Errorf("failed to encode settings: %w", marshalErr)
	}

	writeErr := os.WriteFile(s.path, raw, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write settings file %s: %w", s.path, writeErr)
	}

	return nil
}
