package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/haatos/simple-release/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, store.RunMigrations(db, "sqlite"))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestPackageService(t *testing.T) (*PackageService, billy.Filesystem) {
	db := newTestDB(t)
	fs := memfs.New()
	blobs := store.NewBlobStore(fs)
	return NewPackageService(store.NewPackageSQLStore(db, db), blobs, NewUUIDGen(), zerolog.Nop()), fs
}

func TestPackageService_Publish(t *testing.T) {
	t.Run("success - archive stored and recorded", func(t *testing.T) {
		// arrange
		svc, _ := newTestPackageService(t)
		body := "crate-bytes"

		// act
		p, err := svc.Publish(context.Background(), UploadInput{
			Name: "alpha", Version: "1.2.3", Checksum: sha256Hex(body), Body: strings.NewReader(body), PublishedBy: "tok1",
		})

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(len(body)), p.Size)
		_, f, err := svc.OpenArchive(context.Background(), "alpha", "1.2.3")
		require.NoError(t, err)
		defer f.Close()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, body, string(b))
	})
	t.Run("failure - second publish of same version", func(t *testing.T) {
		// arrange
		svc, _ := newTestPackageService(t)
		in := UploadInput{Name: "alpha", Version: "1.2.3", Body: strings.NewReader("a")}
		_, err := svc.Publish(context.Background(), in)
		require.NoError(t, err)

		// act
		_, err = svc.Publish(context.Background(), UploadInput{Name: "alpha", Version: "1.2.3", Body: strings.NewReader("b")})

		// assert
		assert.ErrorIs(t, err, ErrPackageExists)
	})
	t.Run("failure - checksum mismatch leaves nothing behind", func(t *testing.T) {
		// arrange
		svc, fs := newTestPackageService(t)

		// act
		_, err := svc.Publish(context.Background(), UploadInput{
			Name: "alpha", Version: "1.2.3", Checksum: sha256Hex("other"), Body: strings.NewReader("content"),
		})

		// assert
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		_, getErr := svc.GetPackage(context.Background(), "alpha", "1.2.3")
		assert.True(t, store.IsNotFound(getErr))
		entries, err := fs.ReadDir("/")
		assert.NoError(t, err)
		assert.Empty(t, entries)
	})
	t.Run("failure - invalid name", func(t *testing.T) {
		// arrange
		svc, _ := newTestPackageService(t)

		// act
		_, err := svc.Publish(context.Background(), UploadInput{Name: "../etc", Version: "1.0.0", Body: strings.NewReader("")})

		// assert
		assert.ErrorIs(t, err, ErrInvalidPackageName)
	})
	for _, version := range []string{"..", ".", "-1", "+x", ""} {
		t.Run("failure - path-like version "+version, func(t *testing.T) {
			// arrange
			svc, fs := newTestPackageService(t)

			// act
			_, err := svc.Publish(context.Background(), UploadInput{Name: "alpha", Version: version, Body: strings.NewReader("x")})

			// assert
			assert.ErrorIs(t, err, ErrInvalidPackageName)
			entries, err := fs.ReadDir("/")
			assert.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestValidatePackageVersion(t *testing.T) {
	t.Run("success - plain name and semver", func(t *testing.T) {
		assert.NoError(t, ValidatePackageVersion("alpha_core", "1.2.3-rc.1+build"))
	})
	t.Run("failure - traversal in name or version", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePackageVersion("../x", "1.0.0"), ErrInvalidPackageName)
		assert.ErrorIs(t, ValidatePackageVersion("alpha", ".."), ErrInvalidPackageName)
	})
}

func TestTokenService(t *testing.T) {
	newService := func(t *testing.T) *TokenService {
		db := newTestDB(t)
		return NewTokenService(store.NewTokenSQLStore(db, db))
	}

	t.Run("success - created token authenticates", func(t *testing.T) {
		// arrange
		svc := newService(t)
		value, tok, err := svc.CreateToken(context.Background(), "ci")
		require.NoError(t, err)

		// act
		got, err := svc.Authenticate(context.Background(), value)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, tok.ID, got.ID)
		assert.True(t, strings.HasPrefix(value, "rel_"+tok.ID+"_"))
		assert.NotContains(t, tok.SecretHash, strings.TrimPrefix(value, "rel_"+tok.ID+"_"))
	})
	t.Run("failure - wrong secret", func(t *testing.T) {
		// arrange
		svc := newService(t)
		_, tok, err := svc.CreateToken(context.Background(), "ci")
		require.NoError(t, err)

		// act
		_, err = svc.Authenticate(context.Background(), "rel_"+tok.ID+"_wrong")

		// assert
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("failure - revoked token", func(t *testing.T) {
		// arrange
		svc := newService(t)
		value, tok, err := svc.CreateToken(context.Background(), "ci")
		require.NoError(t, err)
		require.NoError(t, svc.RevokeToken(context.Background(), tok.ID))

		// act
		_, err = svc.Authenticate(context.Background(), value)

		// assert
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("failure - malformed and unknown tokens", func(t *testing.T) {
		// arrange
		svc := newService(t)

		// act
		_, malformedErr := svc.Authenticate(context.Background(), "garbage")
		_, unknownErr := svc.Authenticate(context.Background(), "rel_unknownid_secret")
		revokeErr := svc.RevokeToken(context.Background(), "unknownid")

		// assert
		assert.ErrorIs(t, malformedErr, ErrInvalidToken)
		assert.ErrorIs(t, unknownErr, ErrInvalidToken)
		assert.ErrorIs(t, revokeErr, ErrInvalidToken)
	})
}
