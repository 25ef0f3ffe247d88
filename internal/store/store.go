// Package store is the machine-state synchronization and persistence
// layer. It exposes one Store contract with two interchangeable
// backends picked once at startup: a GORM-backed remote database, or a
// same-device JSON file store used as a permanent fallback when the
// database cannot be reached. Callers must not be able to tell the two
// apart beyond latency and durability scope.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/internal/model"
)

var (
	// ErrInvalidCredentials is returned for both unknown usernames and
	// wrong passwords so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserExists is returned when creating a user whose username is
	// already taken.
	ErrUserExists = errors.New("username already exists")

	// ErrUserNotFound is returned by user operations targeting a
	// username with no stored account.
	ErrUserNotFound = errors.New("user not found")

	// ErrMachineNotFound is returned when a lab/machine pair does not
	// resolve to a seeded record.
	ErrMachineNotFound = errors.New("machine not found")

	// ErrOfflineUnsupported marks operations that are only defined for
	// the remote backend.
	ErrOfflineUnsupported = errors.New("operation is not supported in offline mode")

	// ErrPermissionDenied means the remote backend rejected the write
	// probe; seeding aborts and the operator has to fix access rules.
	ErrPermissionDenied = errors.New("database write access denied")
)

// CancelFunc stops a subscription. It must be called exactly once when
// the caller no longer needs updates; after it returns the callback is
// never invoked again.
type CancelFunc func()

// Store is the single data-access contract every caller consumes.
// All methods are safe for concurrent use. Subscription callbacks are
// invoked synchronously once with the current snapshot at subscribe
// time and again after every committed write; they must return quickly
// and must not call back into Store write operations.
type Store interface {
	// IsRemote reports whether this session is backed by the networked
	// database (true) or the same-device fallback (false). The answer
	// never changes for the lifetime of the process.
	IsRemote() bool

	// Login authenticates a user and returns their public profile.
	// IsDefaultPassword is set when the supplied password equals the
	// system default. Failures surface as ErrInvalidCredentials.
	Login(ctx context.Context, username, password string) (*model.User, error)

	ChangePassword(ctx context.Context, username, newPassword string) error
	ResetUserPassword(ctx context.Context, username string) error

	GetUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, user model.User) error
	UpdateUser(ctx context.Context, username, fullName, role string) error
	DeleteUser(ctx context.Context, username string) error

	// CheckAndSeedData bulk-creates machine records for every configured
	// lab on first-ever startup. Idempotent; guarded by an existence
	// check on the first lab's partition.
	CheckAndSeedData(ctx context.Context) error

	// UpdateMachine replaces a record's status and log wholesale and
	// appends exactly one history entry. State update and history append
	// are committed together on the remote backend.
	UpdateMachine(ctx context.Context, labID string, machineNumber int, status model.MachineStatus, log model.MachineLog) error

	SubscribeToAllMachines(onUpdate func([]model.MachineRecord)) CancelFunc
	SubscribeToLab(labID string, onUpdate func([]model.MachineRecord)) CancelFunc
	SubscribeToMachineHistory(labID string, machineNumber int, onUpdate func([]model.MachineHistoryEntry)) CancelFunc

	UpdateGlobalTheme(ctx context.Context, themeID, updatedBy string) error
	SubscribeToGlobalSettings(onUpdate func(model.GlobalSettings)) CancelFunc

	// GetAppVersion returns nil with no error when no version has been
	// published yet.
	GetAppVersion(ctx context.Context) (*model.AppVersionConfig, error)
	UpdateAppVersion(ctx context.Context, version, downloadURL, updatedBy string) error

	// DB exposes the underlying GORM handle for remote-only collaborators
	// (push subscription storage). Nil in fallback mode.
	DB() *gorm.DB
}
