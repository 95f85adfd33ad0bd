package types

type Version struct {
	value string
}

// NewVersion wraps an already validated version string. Use
// service.VersionResolver to validate user input.
func NewVersion(value string) Version {
	return Version{value: value}
}

func (v Version) String() string {
	return v.value
}

func (v Version) IsZero() bool {
	return v.value == ""
}

type BuildMode string

const (
	ModeDebug   BuildMode = "debug"
	ModeRelease BuildMode = "release"
)

func ParseBuildMode(s string) (BuildMode, bool) {
	switch BuildMode(s) {
	case ModeDebug:
		return ModeDebug, true
	case ModeRelease, "":
		return ModeRelease, true
	default:
		return "", false
	}
}
