package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/service"
	"github.com/haatos/simple-release/internal/store"
	"github.com/haatos/simple-release/internal/types"
	"github.com/labstack/echo/v4"
)

type PackageReader interface {
	GetPackage(ctx context.Context, name, version string) (*store.Package, error)
	ListVersions(ctx context.Context, name string) ([]*store.Package, error)
	OpenArchive(ctx context.Context, name, version string) (*store.Package, billy.File, error)
}

type PackageWriter interface {
	Publish(ctx context.Context, in service.UploadInput) (*store.Package, error)
}

type PackageServicer interface {
	PackageReader
	PackageWriter
}

func SetupPackageRoutes(
	g *echo.Group,
	packageService PackageServicer,
	tokens TokenAuthenticator,
	baseURL string,
) {
	h := NewPackageHandler(packageService, baseURL)
	packagesGroup := g.Group("/api/v1/packages")
	packagesGroup.GET("/:name", h.GetPackage)
	packagesGroup.GET("/:name/:version", h.GetPackageVersion)
	packagesGroup.GET("/:name/:version/download", h.GetPackageDownload)
	packagesGroup.PUT("/:name/:version", h.PutPackageVersion, TokenAuth(tokens))
}

type PackageHandler struct {
	packageService PackageServicer
	baseURL        string
}

func NewPackageHandler(packageService PackageServicer, baseURL string) *PackageHandler {
	return &PackageHandler{packageService, strings.TrimSuffix(baseURL, "/")}
}

type packageVersions struct {
	Name     string           `json:"name"`
	Versions []*store.Package `json:"versions"`
}

func (h *PackageHandler) GetPackage(c echo.Context) error {
	pp, err := bindPackageParams(c)
	if err != nil {
		return err
	}
	versions, err := h.packageService.ListVersions(c.Request().Context(), pp.Name)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list package versions")
	}
	if len(versions) == 0 {
		return newError(nil, http.StatusNotFound, "package not found")
	}
	return c.JSON(http.StatusOK, packageVersions{Name: pp.Name, Versions: versions})
}

func (h *PackageHandler) GetPackageVersion(c echo.Context) error {
	pp, err := bindPackageParams(c)
	if err != nil {
		return err
	}
	p, err := h.packageService.GetPackage(c.Request().Context(), pp.Name, pp.Version)
	if err != nil {
		if store.IsNotFound(err) {
			return newError(nil, http.StatusNotFound, "package version not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read package version")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PackageHandler) GetPackageDownload(c echo.Context) error {
	pp, err := bindPackageParams(c)
	if err != nil {
		return err
	}
	p, f, err := h.packageService.OpenArchive(c.Request().Context(), pp.Name, pp.Version)
	if err != nil {
		if store.IsNotFound(err) {
			return newError(nil, http.StatusNotFound, "package version not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to open package archive")
	}
	defer f.Close()

	c.Response().Header().Set(internal.ChecksumHeader, p.Checksum)
	c.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s.pkg"`, p.Name, p.Version),
	)
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, f)
}

func (h *PackageHandler) PutPackageVersion(c echo.Context) error {
	pp, err := bindPackageParams(c)
	if err != nil {
		return err
	}
	publishedBy := ""
	if t := getCtxToken(c); t != nil {
		publishedBy = t.ID
	}

	p, err := h.packageService.Publish(c.Request().Context(), service.UploadInput{
		Name:        pp.Name,
		Version:     pp.Version,
		Checksum:    c.Request().Header.Get(internal.ChecksumHeader),
		Body:        c.Request().Body,
		PublishedBy: publishedBy,
	})
	switch {
	case errors.Is(err, service.ErrInvalidPackageName):
		return newError(err, http.StatusBadRequest, "invalid package name or version")
	case errors.Is(err, service.ErrChecksumMismatch):
		return newError(err, http.StatusBadRequest, "checksum does not match uploaded content")
	case errors.Is(err, service.ErrPackageExists):
		return newError(err, http.StatusConflict, "package version already exists")
	case err != nil:
		return newError(err, http.StatusInternalServerError, "unable to store package")
	}

	return c.JSON(http.StatusCreated, types.Receipt{
		Package:     p.Name,
		Version:     p.Version,
		Checksum:    p.Checksum,
		Location:    h.downloadURL(c, p),
		PublishedOn: p.PublishedOn,
	})
}

// bindPackageParams reads only path parameters; upload bodies are raw bytes.
func bindPackageParams(c echo.Context) (*PackageParams, error) {
	pp := new(PackageParams)
	if err := (&echo.DefaultBinder{}).BindPathParams(c, pp); err != nil {
		return nil, newError(err, http.StatusBadRequest, "invalid package data")
	}
	return pp, nil
}

func (h *PackageHandler) downloadURL(c echo.Context, p *store.Package) string {
	base := h.baseURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return fmt.Sprintf("%s/api/v1/packages/%s/%s/download", base, p.Name, p.Version)
}
