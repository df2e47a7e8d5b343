package model

import "time"

type WatchSnapshot struct {
	Src       string     `json:"src"`
	Dst       string     `json:"dst"`
	Mode      string     `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	Runs      int        `json:"runs"`
	Changed   int        `json:"changed"`
	Failed    int        `json:"failed"`
	LastRun   *time.Time `json:"last_run"`
	LastError string     `json:"last_error,omitempty"`
}
