package handler

type PackageParams struct {
	Name    string `param:"name"`
	Version string `param:"version"`
}
