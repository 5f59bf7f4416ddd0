package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// State holds per-user settings that change at runtime, as opposed to the
// static configuration in Config.
type State struct {
	Theme string `toml:"theme"`

	// TutorialSeen records that the first-run walkthrough has been shown;
	// it is flipped exactly once.
	TutorialSeen bool `toml:"tutorial_seen"`
}

// NewState creates a new state with default values.
func NewState() *State {
	return &State{
		Theme: "heartguard",
	}
}

// SaveState writes the state to a TOML file.
func SaveState(filePath string, state *State) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create/open state file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := toml.NewEncoder(writer)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode state to TOML file %s: %w", filePath, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer for state file %s: %w", filePath, err)
	}

	return nil
}

// LoadState loads the state from a TOML file, returning defaults when the
// file does not exist yet.
func LoadState(filePath string) (*State, error) {
	var state State
	if _, err := toml.DecodeFile(filePath, &state); err != nil {
		if _, statErr := os.Stat(filePath); os.IsNotExist(statErr) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to decode TOML from file %s: %w", filePath, err)
	}
	return &state, nil
}

// MarkTutorialSeen flips the first-run flag and persists the state.
func (s *State) MarkTutorialSeen(filePath string) error {
	if s.TutorialSeen {
		return nil
	}
	s.TutorialSeen = true
	return SaveState(filePath, s)
}
