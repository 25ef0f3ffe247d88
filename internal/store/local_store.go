package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
)

// File names of the three persisted blobs.
const (
	machinesFile = "machines.json"
	historyFile  = "history.json"
	settingsFile = "settings.json"
)

// Standalone operator credentials recognized by the fallback backend,
// independent of any stored account.
const (
	offlineAdminUsername = "admin"
	offlineAdminPassword = "admin123"
)

type localSettings struct {
	ThemeID   string `json:"themeId"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// localStore is the same-device fallback backend. Each logical
// collection is one JSON blob on disk; a malformed blob degrades
// silently to an empty collection. Durability is limited to this
// device and writers on other devices are not coordinated with.
type localStore struct {
	mu   sync.RWMutex
	dir  string
	hub  *hub
	labs []config.LabConfig
	log  *zap.Logger
}

// NewLocalStore creates the file-backed fallback store rooted at dir.
func NewLocalStore(dir string, labs []config.LabConfig, logger *zap.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &localStore{dir: dir, hub: newHub(), labs: labs, log: logger}, nil
}

func (s *localStore) IsRemote() bool { return false }

func (s *localStore) DB() *gorm.DB { return nil }

// --- blob helpers ---

func (s *localStore) readJSON(name string, out any) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt blob: start over from empty rather than failing.
		s.log.Warn("discarding malformed local blob", zap.String("file", name), zap.Error(err))
	}
}

func (s *localStore) writeJSON(name string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}

func (s *localStore) loadMachines() []model.MachineRecord {
	var machines []model.MachineRecord
	s.readJSON(machinesFile, &machines)
	return machines
}

func (s *localStore) loadHistory() map[string][]model.MachineHistoryEntry {
	history := make(map[string][]model.MachineHistoryEntry)
	s.readJSON(historyFile, &history)
	return history
}

func (s *localStore) loadSettings() localSettings {
	var settings localSettings
	s.readJSON(settingsFile, &settings)
	return settings
}

// --- authentication ---

func (s *localStore) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if username == offlineAdminUsername {
		switch password {
		case offlineAdminPassword:
			return &model.User{Username: "admin", FullName: "Admin Offline", Role: model.RoleAdministrator}, nil
		case model.DefaultPassword:
			return &model.User{Username: "admin", FullName: "Admin Offline", Role: model.RoleAdministrator, IsDefaultPassword: true}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *localStore) ChangePassword(ctx context.Context, username, newPassword string) error {
	return ErrOfflineUnsupported
}

func (s *localStore) ResetUserPassword(ctx context.Context, username string) error {
	return ErrOfflineUnsupported
}

// --- user management ---

// GetUsers returns an empty list offline; the fallback identity is not
// a stored account.
func (s *localStore) GetUsers(ctx context.Context) ([]model.User, error) {
	return []model.User{}, nil
}

func (s *localStore) CreateUser(ctx context.Context, user model.User) error {
	return ErrOfflineUnsupported
}

func (s *localStore) UpdateUser(ctx context.Context, username, fullName, role string) error {
	return ErrOfflineUnsupported
}

func (s *localStore) DeleteUser(ctx context.Context, username string) error {
	return ErrOfflineUnsupported
}

// --- seeding ---

func (s *localStore) CheckAndSeedData(ctx context.Context) error {
	s.mu.Lock()
	machines := s.loadMachines()
	if len(machines) > 0 {
		s.mu.Unlock()
		return nil
	}

	now := time.Now()
	for _, lab := range s.labs {
		for i := 0; i <= lab.Count; i++ {
			machines = append(machines, model.MachineRecord{
				ID:            parse.MachineKey(lab.ID, i),
				LabID:         lab.ID,
				MachineNumber: i,
				Status:        model.StatusOnline,
				UpdatedAt:     now,
			})
		}
	}
	err := s.writeJSON(machinesFile, machines)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info("seeded local machine records", zap.Int("count", len(machines)))
	s.hub.publish(topicMachines)
	return nil
}

// --- machine state ---

func (s *localStore) UpdateMachine(ctx context.Context, labID string, machineNumber int, status model.MachineStatus, log model.MachineLog) error {
	machineID := parse.MachineKey(labID, machineNumber)

	s.mu.Lock()
	machines := s.loadMachines()
	found := false
	for i := range machines {
		if machines[i].LabID == labID && machines[i].MachineNumber == machineNumber {
			machines[i].Status = status
			machines[i].Log = &log
			machines[i].UpdatedAt = time.Now()
			found = true
			break
		}
	}
	if !found {
		machines = append(machines, model.MachineRecord{
			ID:            machineID,
			LabID:         labID,
			MachineNumber: machineNumber,
			Status:        status,
			Log:           &log,
			UpdatedAt:     time.Now(),
		})
	}
	if err := s.writeJSON(machinesFile, machines); err != nil {
		s.mu.Unlock()
		return err
	}

	// The two writes are sequential; unlike the remote backend there is
	// no multi-document transaction here, so a crash between them can
	// lose the history entry. Known limitation of offline mode.
	history := s.loadHistory()
	entry := model.MachineHistoryEntry{
		ID:            uuid.NewString(),
		MachineID:     machineID,
		Status:        status,
		Issues:        log.Issues,
		Note:          log.Note,
		UpdatedBy:     log.UpdatedBy,
		Timestamp:     time.Now(),
		FormattedDate: log.LastUpdated,
	}
	history[machineID] = append([]model.MachineHistoryEntry{entry}, history[machineID]...)
	err := s.writeJSON(historyFile, history)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.hub.publish(topicMachines)
	s.hub.publish(topicHistory(machineID))
	return nil
}

func (s *localStore) SubscribeToAllMachines(onUpdate func([]model.MachineRecord)) CancelFunc {
	return s.hub.subscribe(topicMachines, func() {
		s.mu.RLock()
		machines := s.loadMachines()
		s.mu.RUnlock()
		sort.Slice(machines, func(i, j int) bool { return machines[i].ID < machines[j].ID })
		onUpdate(machines)
	})
}

func (s *localStore) SubscribeToLab(labID string, onUpdate func([]model.MachineRecord)) CancelFunc {
	return s.hub.subscribe(topicMachines, func() {
		s.mu.RLock()
		all := s.loadMachines()
		s.mu.RUnlock()
		machines := make([]model.MachineRecord, 0, len(all))
		for _, m := range all {
			if m.LabID == labID {
				machines = append(machines, m)
			}
		}
		sort.Slice(machines, func(i, j int) bool { return machines[i].MachineNumber < machines[j].MachineNumber })
		onUpdate(machines)
	})
}

func (s *localStore) SubscribeToMachineHistory(labID string, machineNumber int, onUpdate func([]model.MachineHistoryEntry)) CancelFunc {
	machineID := parse.MachineKey(labID, machineNumber)
	return s.hub.subscribe(topicHistory(machineID), func() {
		s.mu.RLock()
		history := s.loadHistory()
		s.mu.RUnlock()
		entries := history[machineID]
		if entries == nil {
			entries = []model.MachineHistoryEntry{}
		}
		onUpdate(entries)
	})
}

// --- global settings ---

func (s *localStore) UpdateGlobalTheme(ctx context.Context, themeID, updatedBy string) error {
	s.mu.Lock()
	err := s.writeJSON(settingsFile, localSettings{ThemeID: themeID, UpdatedBy: updatedBy})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.publish(topicSettings)
	return nil
}

func (s *localStore) SubscribeToGlobalSettings(onUpdate func(model.GlobalSettings)) CancelFunc {
	return s.hub.subscribe(topicSettings, func() {
		s.mu.RLock()
		settings := s.loadSettings()
		s.mu.RUnlock()
		if settings.ThemeID == "" {
			settings.ThemeID = model.DefaultThemeID
		}
		onUpdate(model.GlobalSettings{ThemeID: settings.ThemeID, UpdatedBy: settings.UpdatedBy})
	})
}

// GetAppVersion always reports "no update available" offline.
func (s *localStore) GetAppVersion(ctx context.Context) (*model.AppVersionConfig, error) {
	return nil, nil
}

func (s *localStore) UpdateAppVersion(ctx context.Context, version, downloadURL, updatedBy string) error {
	return ErrOfflineUnsupported
}
