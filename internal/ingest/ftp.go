package ingest

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// RemoteFile is one file in the remote plot tree. Path is relative to the tree root.
type RemoteFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Source is a remote plot tree.
type Source interface {
	List(ctx context.Context) ([]RemoteFile, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Close() error
}

// FTPConfig describes the plot production host.
type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Root     string // remote directory holding ModifiedForecasts/, Forecasts/, Observations/
	Timeout  time.Duration
}

// FTPSource reads the plot tree over FTP.
type FTPSource struct {
	conn *ftp.ServerConn
	root string
}

// DialFTP connects and logs in.
func DialFTP(ctx context.Context, cfg FTPConfig) (*FTPSource, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	conn, err := ftp.Dial(cfg.Addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	user, pass := cfg.User, cfg.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}
	root := cfg.Root
	if root == "" {
		root = "/"
	}
	return &FTPSource{conn: conn, root: root}, nil
}

// List walks the tree below the mirrored top-level directories.
func (s *FTPSource) List(ctx context.Context) ([]RemoteFile, error) {
	var files []RemoteFile
	for _, top := range MirroredDirs {
		w := s.conn.Walk(path.Join(s.root, top))
		for w.Next() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e := w.Stat()
			if e.Type != ftp.EntryTypeFile {
				continue
			}
			rel, ok := relative(s.root, w.Path())
			if !ok {
				continue
			}
			files = append(files, RemoteFile{Path: rel, Size: int64(e.Size), ModTime: e.Time})
		}
		if err := w.Err(); err != nil {
			return nil, fmt.Errorf("ftp walk %s: %w", top, err)
		}
	}
	return files, nil
}

func (s *FTPSource) Open(_ context.Context, p string) (io.ReadCloser, error) {
	resp, err := s.conn.Retr(path.Join(s.root, p))
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", p, err)
	}
	return resp, nil
}

func (s *FTPSource) Close() error {
	return s.conn.Quit()
}

func relative(root, p string) (string, bool) {
	root = path.Clean("/" + root)
	p = path.Clean("/" + p)
	if root == "/" {
		return p[1:], p != "/"
	}
	if len(p) <= len(root) || p[:len(root)] != root || p[len(root)] != '/' {
		return "", false
	}
	return p[len(root)+1:], true
}
