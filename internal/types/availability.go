package types

type Availability string

const (
	Available   Availability = "Available"
	Unavailable Availability = "Unavailable"
	Unknown     Availability = "Unknown"
)
