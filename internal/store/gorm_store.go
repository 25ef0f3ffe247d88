package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
)

// probeRecordID is the bookkeeping row written to verify database
// access before seeding. It must never be surfaced to callers.
const probeRecordID = "_probe"

// gormStore is the remote backend, holding machine state, users and
// settings in a relational database. Change notifications fan out
// through an in-process hub after each commit.
type gormStore struct {
	db   *gorm.DB
	hub  *hub
	labs []config.LabConfig
	log  *zap.Logger
}

// NewGormStore creates the remote database-backed store.
func NewGormStore(db *gorm.DB, labs []config.LabConfig, logger *zap.Logger) Store {
	return &gormStore{db: db, hub: newHub(), labs: labs, log: logger}
}

func (s *gormStore) IsRemote() bool { return true }

func (s *gormStore) DB() *gorm.DB { return s.db }

// --- authentication ---

func (s *gormStore) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	// Bootstrap path: the default credential pair against an empty user
	// collection fabricates the first administrator account.
	if username == "admin" && password == model.DefaultPassword {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.User{}).Limit(1).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check user collection: %w", err)
		}
		if count == 0 {
			admin := model.User{
				Username: "admin",
				Password: model.DefaultPassword,
				FullName: "Administrator",
				Role:     model.RoleAdministrator,
			}
			if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
				return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
			}
			s.log.Info("user collection empty, created bootstrap administrator")
			admin = admin.Public()
			admin.IsDefaultPassword = true
			return &admin, nil
		}
	}

	var user model.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Password != password {
		return nil, ErrInvalidCredentials
	}

	user = user.Public()
	user.IsDefaultPassword = password == model.DefaultPassword
	return &user, nil
}

func (s *gormStore) ChangePassword(ctx context.Context, username, newPassword string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Update("password", newPassword)
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *gormStore) ResetUserPassword(ctx context.Context, username string) error {
	return s.ChangePassword(ctx, username, model.DefaultPassword)
}

// --- user management ---

func (s *gormStore) GetUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, nil
}

func (s *gormStore) CreateUser(ctx context.Context, user model.User) error {
	var existing model.User
	err := s.db.WithContext(ctx).First(&existing, "username = ?", user.Username).Error
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}

	if user.Password == "" {
		user.Password = model.DefaultPassword
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateUser(ctx context.Context, username, fullName, role string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Updates(map[string]any{"full_name": fullName, "role": role})
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser resolves the username by query before deleting rather than
// deleting by key directly. Creation writes the key directly; the
// asymmetry is deliberate, the lookup tolerates key-format drift.
func (s *gormStore) DeleteUser(ctx context.Context, username string) error {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&user).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// --- seeding ---

func (s *gormStore) CheckAndSeedData(ctx context.Context) error {
	// Probe write access first. A rejected probe means misconfigured
	// rules; seeding must abort rather than half-create records.
	probe := model.MachineRecord{ID: probeRecordID, Status: model.StatusOnline, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&probe).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	// Existence check on the first lab's partition, not a count check.
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.MachineRecord{}).
		Where("lab_id = ?", s.labs[0].ID).
		Limit(1).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	var records []model.MachineRecord
	for _, lab := range s.labs {
		for i := 0; i <= lab.Count; i++ {
			records = append(records, model.MachineRecord{
				ID:            parse.MachineKey(lab.ID, i),
				LabID:         lab.ID,
				MachineNumber: i,
				Status:        model.StatusOnline,
				UpdatedAt:     now,
			})
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, 200).Error
	})
	if err != nil {
		return fmt.Errorf("failed to seed machine records: %w", err)
	}

	s.log.Info("seeded machine records", zap.Int("count", len(records)))
	s.hub.publish(topicMachines)
	return nil
}

// --- machine state ---

func (s *gormStore) UpdateMachine(ctx context.Context, labID string, machineNumber int, status model.MachineStatus, log model.MachineLog) error {
	machineID := parse.MachineKey(labID, machineNumber)
	record := model.MachineRecord{
		ID:            machineID,
		LabID:         labID,
		MachineNumber: machineNumber,
		Status:        status,
		Log:           &log,
		UpdatedAt:     time.Now(),
	}
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

	// State update and history append commit together.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "log", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to upsert machine record %s: %w", machineID, err)
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append history for %s: %w", machineID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.hub.publish(topicMachines)
	s.hub.publish(topicHistory(machineID))
	return nil
}

func (s *gormStore) readAllMachines() ([]model.MachineRecord, error) {
	var machines []model.MachineRecord
	err := s.db.Where("id <> ?", probeRecordID).Order("id").Find(&machines).Error
	return machines, err
}

func (s *gormStore) readLabMachines(labID string) ([]model.MachineRecord, error) {
	var machines []model.MachineRecord
	err := s.db.Where("lab_id = ? AND id <> ?", labID, probeRecordID).
		Order("machine_number").Find(&machines).Error
	return machines, err
}

func (s *gormStore) readHistory(machineID string) ([]model.MachineHistoryEntry, error) {
	var entries []model.MachineHistoryEntry
	err := s.db.Where("machine_id = ?", machineID).
		Order("timestamp DESC").Find(&entries).Error
	return entries, err
}

func (s *gormStore) SubscribeToAllMachines(onUpdate func([]model.MachineRecord)) CancelFunc {
	return s.hub.subscribe(topicMachines, func() {
		machines, err := s.readAllMachines()
		if err != nil {
			s.log.Error("failed to read machine snapshot", zap.Error(err))
			return
		}
		onUpdate(machines)
	})
}

func (s *gormStore) SubscribeToLab(labID string, onUpdate func([]model.MachineRecord)) CancelFunc {
	return s.hub.subscribe(topicMachines, func() {
		machines, err := s.readLabMachines(labID)
		if err != nil {
			s.log.Error("failed to read lab snapshot", zap.String("lab", labID), zap.Error(err))
			return
		}
		onUpdate(machines)
	})
}

func (s *gormStore) SubscribeToMachineHistory(labID string, machineNumber int, onUpdate func([]model.MachineHistoryEntry)) CancelFunc {
	machineID := parse.MachineKey(labID, machineNumber)
	return s.hub.subscribe(topicHistory(machineID), func() {
		entries, err := s.readHistory(machineID)
		if err != nil {
			s.log.Error("failed to read machine history", zap.String("machine", machineID), zap.Error(err))
			return
		}
		onUpdate(entries)
	})
}

// --- global settings ---

func (s *gormStore) UpdateGlobalTheme(ctx context.Context, themeID, updatedBy string) error {
	settings := model.GlobalSettings{
		Key:       model.GlobalSettingsKey,
		ThemeID:   themeID,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&settings).Error; err != nil {
		return fmt.Errorf("failed to update theme: %w", err)
	}
	s.hub.publish(topicSettings)
	return nil
}

func (s *gormStore) SubscribeToGlobalSettings(onUpdate func(model.GlobalSettings)) CancelFunc {
	return s.hub.subscribe(topicSettings, func() {
		var settings model.GlobalSettings
		err := s.db.First(&settings, "key = ?", model.GlobalSettingsKey).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			onUpdate(model.GlobalSettings{ThemeID: model.DefaultThemeID})
			return
		}
		if err != nil {
			s.log.Error("failed to read global settings", zap.Error(err))
			return
		}
		onUpdate(settings)
	})
}

func (s *gormStore) GetAppVersion(ctx context.Context) (*model.AppVersionConfig, error) {
	var version model.AppVersionConfig
	err := s.db.WithContext(ctx).First(&version, "key = ?", model.AppVersionKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch app version: %w", err)
	}
	return &version, nil
}

func (s *gormStore) UpdateAppVersion(ctx context.Context, version, downloadURL, updatedBy string) error {
	cfg := model.AppVersionConfig{
		Key:         model.AppVersionKey,
		Version:     version,
		DownloadURL: downloadURL,
		UpdatedBy:   updatedBy,
		UpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to update app version: %w", err)
	}
	return nil
}
