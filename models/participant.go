package models

import (
	"time"
)

type Participant struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Location   *Location  `json:"location"`
	IsReady    bool       `json:"is_ready"`
	IsHost     bool       `json:"is_host"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastActive time.Time  `json:"last_active"`
}
