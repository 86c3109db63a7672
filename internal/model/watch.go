package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWatchConfigNotFound = errors.New("watch config not found")
	ErrWatchConfigExists   = errors.New("directory is already watched")
	ErrWatchConfigActive   = errors.New("watch config is active; stop it first")
)

// WatchConfig is a stored directory the poller scans while Active. Project
// and developer hints are passed to every conversation created from it.
type WatchConfig struct {
	ID                uuid.UUID  `json:"id"`
	Directory         string     `json:"directory"`
	ProjectName       string     `json:"project_name,omitempty"`
	DeveloperUsername string     `json:"developer_username,omitempty"`
	EnableIncremental bool       `json:"enable_incremental"`
	Active            bool       `json:"active"`
	LastStartedAt     *time.Time `json:"last_started_at,omitempty"`
	LastStoppedAt     *time.Time `json:"last_stopped_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
