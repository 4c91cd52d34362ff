package worker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/aistudio/internal/job"
)

// ErrFailureNotFound is returned when a dead-letter record does not exist.
var ErrFailureNotFound = errors.New("failed job not found")

// Failure records a job whose pipeline failed, kept for manual resubmission.
type Failure struct {
	Job      job.Job   `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

// DeadLetters stores failed jobs. Failed jobs are never retried
// automatically; they are only resubmitted on request.
type DeadLetters interface {
	Record(f Failure) error
	List() ([]Failure, error)
	Take(id string) (Failure, error)
}

// FileDeadLetters keeps failures as JSON lines in a single file.
type FileDeadLetters struct {
	mu   sync.Mutex
	path string
}

// NewFileDeadLetters creates a file-backed dead-letter store.
func NewFileDeadLetters(path string) *FileDeadLetters {
	return &FileDeadLetters{path: path}
}

// Path returns the backing file path.
func (d *FileDeadLetters) Path() string { return d.path }

// Record appends a failure.
func (d *FileDeadLetters) Record(f Failure) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create dead-letter directory: %w", err)
	}
	file, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dead-letter file: %w", err)
	}
	defer func() { _ = file.Close() }()

	line, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	line = append(line, '\n')
	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("write dead-letter file: %w", err)
	}
	return nil
}

// List returns all recorded failures, oldest first. A missing file is an
// empty list; malformed lines are skipped.
func (d *FileDeadLetters) List() ([]Failure, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readAll()
}

// Take removes and returns the failure for the given job ID.
func (d *FileDeadLetters) Take(id string) (Failure, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.readAll()
	if err != nil {
		return Failure{}, err
	}

	var (
		found Failure
		ok    bool
		keep  = all[:0]
	)
	for _, f := range all {
		if !ok && f.Job.ID == id {
			found, ok = f, true
			continue
		}
		keep = append(keep, f)
	}
	if !ok {
		return Failure{}, ErrFailureNotFound
	}
	if err := d.writeAll(keep); err != nil {
		return Failure{}, err
	}
	return found, nil
}

func (d *FileDeadLetters) readAll() ([]Failure, error) {
	file, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open dead-letter file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var out []Failure
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var f Failure
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dead-letter file: %w", err)
	}
	return out, nil
}

func (d *FileDeadLetters) writeAll(all []Failure) error {
	tmp := d.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("rewrite dead-letter file: %w", err)
	}
	enc := json.NewEncoder(file)
	for _, f := range all {
		if err := enc.Encode(f); err != nil {
			_ = file.Close()
			return fmt.Errorf("encode failure: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}
