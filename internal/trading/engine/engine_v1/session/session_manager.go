package session

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"go.uber.org/zap"
)

var runPattern = regexp.MustCompile(`^run_(\d+)$`)

// SessionManager owns the output folder of one order handler run:
//
//	{dataOutputPath}/{YYYY-MM-DD}/run_N/
//
// Every run also gets a random session id that is written into the journal rows.
type SessionManager struct {
	dataOutputPath string
	sessionID      string
	runID          string
	runNumber      int
	sessionStart   time.Time
	currentDate    string
	currentRunPath string
	now            func() time.Time
	mu             sync.Mutex
	logger         *logger.Logger
}

// NewSessionManager creates a new SessionManager instance.
func NewSessionManager(log *logger.Logger) *SessionManager {
	return &SessionManager{
		dataOutputPath: "",
		sessionID:      "",
		runID:          "",
		runNumber:      0,
		sessionStart:   time.Time{},
		currentDate:    "",
		currentRunPath: "",
		now:            time.Now,
		mu:             sync.Mutex{},
		logger:         log,
	}
}

// WithClock replaces the wall clock used to date the run folder.
func (s *SessionManager) WithClock(now func() time.Time) *SessionManager {
	s.now = now

	return s
}

// Initialize picks the next run number for today and creates the run folder.
func (s *SessionManager) Initialize(dataOutputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dataOutputPath == "" {
		return errors.New(errors.ErrCodeMissingParameter, "data output path is required")
	}

	s.dataOutputPath = dataOutputPath
	s.sessionStart = s.now()
	s.currentDate = s.sessionStart.Format(time.DateOnly)
	s.sessionID = uuid.NewString()

	runNumber, err := s.nextRunNumber(s.currentDate)
	if err != nil {
		return err
	}

	s.runNumber = runNumber
	s.runID = "run_" + strconv.Itoa(runNumber)
	s.currentRunPath = filepath.Join(s.dataOutputPath, s.currentDate, s.runID)

	if err := os.MkdirAll(s.currentRunPath, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeSessionFailed, "failed to create run folder", err)
	}

	s.logger.Info("Session initialized",
		zap.String("session_id", s.sessionID),
		zap.String("run_id", s.runID),
		zap.String("path", s.currentRunPath),
	)

	return nil
}

//nolint:funcorder // helper method used by Initialize
func (s *SessionManager) nextRunNumber(date string) (int, error) {
	runs, err := listRuns(filepath.Join(s.dataOutputPath, date))
	if err != nil {
		return 0, err
	}

	if len(runs) == 0 {
		return 1, nil
	}

	last, _ := strconv.Atoi(runPattern.FindStringSubmatch(runs[len(runs)-1])[1])

	return last + 1, nil
}

// GetSessionID returns the random id of this run.
func (s *SessionManager) GetSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionID
}

// GetRunID returns the run folder name (e.g., "run_1").
func (s *SessionManager) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}

func (s *SessionManager) GetRunNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runNumber
}

func (s *SessionManager) GetSessionStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionStart
}

// GetCurrentRunPath returns the run folder path.
func (s *SessionManager) GetCurrentRunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentRunPath
}

// GetFilePath returns the full path for a file in the run folder.
func (s *SessionManager) GetFilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.currentRunPath, filename)
}

// ListSessionsForDate returns the run folders of a date ordered by run number.
func (s *SessionManager) ListSessionsForDate(date string) ([]string, error) {
	return listRuns(filepath.Join(s.dataOutputPath, date))
}

func listRuns(datePath string) ([]string, error) {
	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSessionFailed, "failed to read date directory", err)
	}

	runs := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() && runPattern.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		numI, _ := strconv.Atoi(runs[i][4:])
		numJ, _ := strconv.Atoi(runs[j][4:])

		return numI < numJ
	})

	return runs, nil
}
