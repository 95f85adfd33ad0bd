package types

import "time"

type Artifact struct {
	Path     string
	Size     int64
	Checksum string
}

type Receipt struct {
	Package     string    `json:"name"`
	Version     string    `json:"version"`
	Checksum    string    `json:"checksum"`
	Location    string    `json:"location"`
	PublishedOn time.Time `json:"published_on"`
	Recovered   bool      `json:"-"`
}
