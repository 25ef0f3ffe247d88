package model

import "time"

// Keys of the two known settings documents.
const (
	GlobalSettingsKey = "global"
	AppVersionKey     = "app_version"
)

// DefaultThemeID is substituted when no settings document exists yet.
const DefaultThemeID = "default"

// GlobalSettings is the single shared display-settings document.
// Last writer wins.
type GlobalSettings struct {
	Key       string    `gorm:"primaryKey;size:32" json:"-"`
	ThemeID   string    `gorm:"size:64;not null" json:"themeId"`
	UpdatedBy string    `gorm:"size:128" json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AppVersionConfig is the single shared document holding the latest
// published client version and its download link. Absent until an
// administrator first publishes a version.
type AppVersionConfig struct {
	Key         string    `gorm:"primaryKey;size:32" json:"-"`
	Version     string    `gorm:"size:32;not null" json:"version"`
	DownloadURL string    `gorm:"size:512" json:"downloadUrl"`
	UpdatedBy   string    `gorm:"size:128" json:"updatedBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
