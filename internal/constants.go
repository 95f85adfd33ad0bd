package internal

import "regexp"

const (
	DotEnvPath          = "./.env"
	ConfigFileName      = "release.yaml"
	MigrationsDir       = "migrations"
	DefaultTagPrefix    = "v"
	DefaultTokenEnv     = "RELEASE_TOKEN"
	ChecksumHeader      = "X-Checksum-Sha256"
	PartialUploadPrefix = ".partial-"
	TokenPrefix         = "rel"
	MaxBuildLogBytes    = 64 * 1024
)

var (
	// PackageNamePattern is shared by the client config and the registry
	// server so a name accepted locally is accepted remotely.
	PackageNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	VersionPattern     = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.+-]*$`)
)
