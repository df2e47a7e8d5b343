package model

import (
	"time"

	"gorm.io/gorm"
)

type SyncStatus string

const (
	StatusSuccess SyncStatus = "SUCCESS"
	StatusFailed  SyncStatus = "FAILED"
)

type Run struct {
	gorm.Model
	Src        string `gorm:"not null"`
	Dst        string `gorm:"not null"`
	Mode       string `gorm:"not null"`
	DryRun     bool
	Created    int
	Copied     int
	Skipped    int
	Deleted    int
	Failed     int
	Bytes      int64
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time
}

type History struct {
	gorm.Model
	RunID    uint       `gorm:"index;not null"`
	Status   SyncStatus `gorm:"not null"`
	Action   string     `gorm:"not null"`
	Path     string     `gorm:"not null"`
	Reason   string
	ErrMsg   string
	SyncedAt time.Time `gorm:"not null"`
}
