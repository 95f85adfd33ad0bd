package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/store"
	"github.com/rs/zerolog"
)

type PackageBlobs interface {
	Location(name, version string) string
	CreatePartial(id string) (billy.File, error)
	Commit(partial, location string) error
	Remove(name string) error
	Open(location string) (billy.File, error)
}

type UploadInput struct {
	Name        string
	Version     string
	Checksum    string
	Body        io.Reader
	PublishedBy string
}

// PackageService is the registry server side of publishing. A version is
// visible only once its archive is verified and in place.
type PackageService struct {
	store   store.PackageStore
	blobs   PackageBlobs
	uuidGen UUIDGenerator
	logger  zerolog.Logger
	now     func() time.Time
}

func NewPackageService(
	store store.PackageStore,
	blobs PackageBlobs,
	uuidGen UUIDGenerator,
	logger zerolog.Logger,
) *PackageService {
	return &PackageService{
		store:   store,
		blobs:   blobs,
		uuidGen: uuidGen,
		logger:  logger,
		now:     time.Now,
	}
}

func ValidatePackageVersion(name, version string) error {
	if !internal.PackageNamePattern.MatchString(name) || !internal.VersionPattern.MatchString(version) {
		return ErrInvalidPackageName
	}
	return nil
}

func (s *PackageService) GetPackage(ctx context.Context, name, version string) (*store.Package, error) {
	return s.store.ReadPackage(ctx, name, version)
}

func (s *PackageService) ListVersions(ctx context.Context, name string) ([]*store.Package, error) {
	return s.store.ListPackageVersions(ctx, name)
}

func (s *PackageService) OpenArchive(ctx context.Context, name, version string) (*store.Package, billy.File, error) {
	p, err := s.store.ReadPackage(ctx, name, version)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.blobs.Open(p.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return p, f, nil
}

func (s *PackageService) Publish(ctx context.Context, in UploadInput) (*store.Package, error) {
	if err := ValidatePackageVersion(in.Name, in.Version); err != nil {
		return nil, err
	}
	if _, err := s.store.ReadPackage(ctx, in.Name, in.Version); err == nil {
		return nil, ErrPackageExists
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	partial, err := s.blobs.CreatePartial(s.uuidGen.GenerateUUID())
	if err != nil {
		return nil, fmt.Errorf("create partial upload: %w", err)
	}
	partialName := partial.Name()
	committed := false
	defer func() {
		if !committed {
			if err := s.blobs.Remove(partialName); err != nil {
				s.logger.Warn().Err(err).Str("partial", partialName).Msg("could not remove partial upload")
			}
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(partial, h), in.Body)
	closeErr := partial.Close()
	if err != nil {
		return nil, fmt.Errorf("receive upload: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("write upload: %w", closeErr)
	}

	checksum := hex.EncodeToString(h.Sum(nil))
	if in.Checksum != "" && !strings.EqualFold(in.Checksum, checksum) {
		return nil, ErrChecksumMismatch
	}

	p := &store.Package{
		Name:        in.Name,
		Version:     in.Version,
		Checksum:    checksum,
		Size:        size,
		Location:    s.blobs.Location(in.Name, in.Version),
		PublishedBy: in.PublishedBy,
		PublishedOn: s.now().UTC(),
	}
	moved := false
	err = s.store.CreatePackage(ctx, p, func() error {
		if err := s.blobs.Commit(partialName, p.Location); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		if moved {
			_ = s.blobs.Remove(p.Location)
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrPackageExists
		}
		return nil, err
	}
	committed = true

	s.logger.Info().
		Str("package", p.Name).
		Str("version", p.Version).
		Int64("size", p.Size).
		Str("published_by", p.PublishedBy).
		Msg("package published")
	return p, nil
}
