package models

type LocationKind string

const (
	LocationLive   LocationKind = "live"
	LocationManual LocationKind = "manual"
)

type Location struct {
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	Kind    LocationKind `json:"kind"`
	Address string       `json:"address,omitempty"`
}
