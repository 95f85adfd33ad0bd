package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/types"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPDialer opens an sftp session. The returned closer releases the
// session and its transport.
type SFTPDialer func(ctx context.Context, credential types.Credential) (*sftp.Client, func() error, error)

// SFTPRegistry stores packages as files below a root directory on an SSH
// host: <root>/<name>/<version>/<name>-<version>.pkg with a .sha256 sidecar.
type SFTPRegistry struct {
	host       string
	root       string
	credential types.Credential
	dial       SFTPDialer
	observer   Observer
}

func NewSFTPRegistry(
	u *url.URL,
	credential types.Credential,
	knownHostsPath string,
	observer Observer,
) (*SFTPRegistry, error) {
	username := u.User.Username()
	if username == "" {
		return nil, fmt.Errorf("sftp registry url requires a user")
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "22")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if knownHostsPath != "" {
		cb, err := knownhosts.New(expandHome(knownHostsPath))
		if err != nil {
			return nil, fmt.Errorf("err reading known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	root := u.Path
	if root == "" {
		root = "/"
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &SFTPRegistry{
		host:       host,
		root:       root,
		credential: credential,
		dial:       sshDialer(username, host, hostKeyCallback),
		observer:   observer,
	}, nil
}

// NewSFTPRegistryWithDialer wires a custom dialer, e.g. an in-process server.
func NewSFTPRegistryWithDialer(host, root string, dial SFTPDialer) *SFTPRegistry {
	return &SFTPRegistry{host: host, root: root, dial: dial, observer: nopObserver{}}
}

func sshDialer(username, host string, hostKeyCallback ssh.HostKeyCallback) SFTPDialer {
	return func(ctx context.Context, credential types.Credential) (*sftp.Client, func() error, error) {
		signer, err := ssh.ParsePrivateKey([]byte(credential.Reveal()))
		if err != nil {
			return nil, nil, &StatusError{StatusCode: 401, Message: "invalid ssh private key"}
		}
		cc := &ssh.ClientConfig{
			User:            username,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return nil, nil, err
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, host, cc)
		if err != nil {
			conn.Close()
			if strings.Contains(err.Error(), "unable to authenticate") {
				return nil, nil, &StatusError{StatusCode: 401, Message: "ssh authentication failed"}
			}
			return nil, nil, err
		}
		client := ssh.NewClient(c, chans, reqs)
		sftpClient, err := sftp.NewClient(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return sftpClient, func() error {
			return errors.Join(sftpClient.Close(), client.Close())
		}, nil
	}
}

func (r *SFTPRegistry) Name() string {
	return r.host
}

func (r *SFTPRegistry) versionDir(name, version string) string {
	return path.Join(r.root, name, version)
}

func (r *SFTPRegistry) packagePath(name, version string) string {
	return path.Join(r.versionDir(name, version), name+"-"+version+".pkg")
}

func (r *SFTPRegistry) connect(ctx context.Context, credential types.Credential) (*sftp.Client, func() error, error) {
	if credential.IsEmpty() {
		credential = r.credential
	}
	return r.dial(ctx, credential)
}

func (r *SFTPRegistry) Lookup(ctx context.Context, name, version string) (info *PackageInfo, err error) {
	defer func() { r.observer.ObserveRequest("lookup", resultLabel(err)) }()

	client, closeFn, err := r.connect(ctx, types.Credential{})
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return r.lookup(client, name, version)
}

func (r *SFTPRegistry) lookup(client *sftp.Client, name, version string) (*PackageInfo, error) {
	p := r.packagePath(name, version)
	st, err := client.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	info := &PackageInfo{
		Name:        name,
		Version:     version,
		Size:        st.Size(),
		PublishedOn: st.ModTime().UTC(),
	}
	if f, err := client.Open(p + ".sha256"); err == nil {
		b, _ := io.ReadAll(io.LimitReader(f, 128))
		f.Close()
		info.Checksum = strings.TrimSpace(string(b))
	}
	return info, nil
}

func (r *SFTPRegistry) Availability(ctx context.Context, name string) (a types.Availability, err error) {
	defer func() { r.observer.ObserveRequest("availability", resultLabel(err)) }()

	client, closeFn, err := r.connect(ctx, types.Credential{})
	if err != nil {
		return types.Unknown, err
	}
	defer closeFn()

	_, err = client.Stat(path.Join(r.root, name))
	switch {
	case err == nil:
		return types.Unavailable, nil
	case errors.Is(err, fs.ErrNotExist):
		return types.Available, nil
	default:
		return types.Unknown, nil
	}
}

// Upload writes the artifact and its checksum sidecar to partial files and
// renames them into place once the checksum matches. The package is renamed
// first: the upload that loses a race touches nothing but its own partials.
func (r *SFTPRegistry) Upload(ctx context.Context, ur UploadRequest) (receipt *types.Receipt, err error) {
	defer func() { r.observer.ObserveRequest("upload", resultLabel(err)) }()

	client, closeFn, err := r.connect(ctx, ur.Credential)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if _, err := r.lookup(client, ur.Name, ur.Version); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	dir := r.versionDir(ur.Name, ur.Version)
	if err := client.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("err creating %s: %w", dir, err)
	}

	final := r.packagePath(ur.Name, ur.Version)
	partial := path.Join(dir, internal.PartialUploadPrefix+uuid.NewString())
	checksum, err := r.writePartial(ctx, client, partial, ur.ArtifactPath)
	if err != nil {
		_ = client.Remove(partial)
		return nil, err
	}
	if checksum != ur.Checksum {
		_ = client.Remove(partial)
		return nil, &StatusError{StatusCode: 400, Message: "checksum mismatch"}
	}

	partialSum := partial + ".sha256"
	if err := writeRemoteFile(client, partialSum, checksum+"\n"); err != nil {
		_ = client.Remove(partial)
		_ = client.Remove(partialSum)
		return nil, err
	}
	if err := client.Rename(partial, final); err != nil {
		_ = client.Remove(partial)
		_ = client.Remove(partialSum)
		if _, statErr := client.Stat(final); statErr == nil {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("err completing upload: %w", err)
	}
	// A sidecar already at the final path is left over from an interrupted upload.
	if err := client.Rename(partialSum, final+".sha256"); err != nil {
		_ = client.Remove(final + ".sha256")
		if err := client.Rename(partialSum, final+".sha256"); err != nil {
			_ = client.Remove(partialSum)
			return nil, fmt.Errorf("err storing checksum: %w", err)
		}
	}

	return &types.Receipt{
		Package:     ur.Name,
		Version:     ur.Version,
		Checksum:    checksum,
		Location:    "sftp://" + r.host + final,
		PublishedOn: time.Now().UTC(),
	}, nil
}

func (r *SFTPRegistry) writePartial(
	ctx context.Context,
	client *sftp.Client,
	partial, artifactPath string,
) (string, error) {
	src, err := os.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("err opening artifact: %w", err)
	}
	defer src.Close()

	dst, err := client.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, h), &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeRemoteFile(client *sftp.Client, p, content string) error {
	f, err := client.Create(p)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return path.Join(home, rest)
		}
	}
	return p
}
