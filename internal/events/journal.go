package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/pkg/types"
)

const JournalFileName = "events.jsonl"

// Journal appends events as JSON lines to a file in the data directory.
// Write failures are logged and swallowed; the journal is an audit trail,
// never a reason to stop watching.
type Journal struct {
	logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
}

// OpenJournal opens (creating if needed) the journal file under dir.
func OpenJournal(dir string, logger zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure journal dir %q: %w", dir, err)
	}
	path := filepath.Join(dir, JournalFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	return &Journal{logger: logger, file: file}, nil
}

func (j *Journal) Record(event types.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		j.logger.Warn().Err(err).Msg("journal marshal failed")
		return
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(data); err != nil {
		j.logger.Warn().Err(err).Msg("journal write failed")
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

var _ Recorder = (*Journal)(nil)
