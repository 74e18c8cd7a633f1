package fetcher

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/ftp-sentinel/internal/resilience"
)

// Params describes one check cycle: where to connect, what to mirror, and
// what to do with remote files afterwards. The orchestrator captures these
// from the live settings once per tick.
type Params struct {
	Host                string
	Port                int
	User                string
	Password            string
	Timeout             time.Duration
	RemotePath          string
	LocalDir            string
	DeleteAfterDownload bool
}

// Addr returns the host:port dial address.
func (p Params) Addr() string {
	port := p.Port
	if port == 0 {
		port = 21
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// CheckResult aggregates one check cycle's outcome. Downloaded > 0 is what
// the monitor treats as activity.
type CheckResult struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Deleted    int `json:"deleted"`
	Errors     int `json:"errors"`
}

// Activity reports whether at least one file actually downloaded.
func (r CheckResult) Activity() bool {
	return r.Downloaded > 0
}

// Options configures the FTP client.
type Options struct {
	// ConnectAttempts bounds connection retries per cycle. Default: 3.
	ConnectAttempts int

	// OpsPerSecond paces per-file FTP commands so a large remote directory
	// does not hammer the server. Default: 20.
	OpsPerSecond float64
}

// Client downloads files over FTP, mirroring a remote directory tree into a
// local one.
type Client struct {
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a new FTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 3
	}
	if opts.OpsPerSecond <= 0 {
		opts.OpsPerSecond = 20
	}
	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.OpsPerSecond), 1),
	}
}

// Check performs one download cycle: connect, walk the remote path, download
// anything new, optionally delete remote files. Per-file errors are logged
// and counted but do not abort the cycle; only connection-level failures and
// context cancellation return an error.
func (c *Client) Check(ctx context.Context, p Params) (CheckResult, error) {
	var res CheckResult

	conn, err := resilience.DoVal(ctx, resilience.Policy{
		Op:          "ftp connect",
		MaxAttempts: c.opts.ConnectAttempts,
	}, func(ctx context.Context) (*ftp.ServerConn, error) {
		return c.connect(ctx, p)
	})
	if err != nil {
		return res, eris.Wrapf(err, "fetcher: connect %s", p.Addr())
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			zap.L().Debug("ftp: quit", zap.Error(err))
		}
	}()

	if err := c.walk(ctx, conn, p, p.RemotePath, p.LocalDir, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Client) connect(ctx context.Context, p Params) (*ftp.ServerConn, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	zap.L().Debug("ftp: connecting", zap.String("addr", p.Addr()))

	conn, err := ftp.Dial(p.Addr(), ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}

	user, pass := p.User, p.Password
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// walk mirrors remoteDir into localDir, recursing into subdirectories.
func (c *Client) walk(ctx context.Context, conn *ftp.ServerConn, p Params, remoteDir, localDir string, res *CheckResult) error {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return eris.Wrapf(err, "fetcher: create local dir %s", localDir)
	}

	entries, err := conn.List(remoteDir)
	if err != nil {
		res.Errors++
		zap.L().Warn("ftp: list failed", zap.String("dir", remoteDir), zap.Error(err))
		return nil
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		remote := joinRemote(remoteDir, entry.Name)
		local := filepath.Join(localDir, entry.Name)

		switch entry.Type {
		case ftp.EntryTypeFolder:
			if err := c.walk(ctx, conn, p, remote, local, res); err != nil {
				return err
			}
		case ftp.EntryTypeFile:
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			c.transfer(conn, p, entry, remote, local, res)
		}
	}
	return nil
}

// transfer downloads a single file, or skips it when an identical local copy
// already exists. Delete-after-download applies to skipped files too, so a
// remote file never survives once it is known to be safely on disk.
func (c *Client) transfer(conn *ftp.ServerConn, p Params, entry *ftp.Entry, remote, local string, res *CheckResult) {
	if existsWithSize(local, entry.Size) {
		res.Skipped++
		zap.L().Debug("ftp: skipping existing file", zap.String("file", remote))
		c.deleteRemote(conn, p, remote, res)
		return
	}

	if err := c.download(conn, remote, local); err != nil {
		res.Errors++
		zap.L().Warn("ftp: download failed", zap.String("file", remote), zap.Error(err))
		return
	}
	res.Downloaded++
	zap.L().Info("ftp: downloaded file",
		zap.String("file", remote),
		zap.Uint64("size", entry.Size),
	)
	c.deleteRemote(conn, p, remote, res)
}

// download retrieves remote into local via a temp file and atomic rename, so
// a crash mid-transfer never leaves a partial file in place.
func (c *Client) download(conn *ftp.ServerConn, remote, local string) error {
	resp, err := conn.Retr(remote)
	if err != nil {
		return eris.Wrap(err, "ftp retrieve")
	}

	part := local + ".part"
	file, err := os.Create(part)
	if err != nil {
		resp.Close()
		return eris.Wrap(err, "create temp file")
	}

	_, copyErr := io.Copy(file, resp)
	closeErr := file.Close()
	respErr := resp.Close()

	if copyErr != nil {
		os.Remove(part)
		return eris.Wrap(copyErr, "write file")
	}
	if closeErr != nil {
		os.Remove(part)
		return eris.Wrap(closeErr, "close file")
	}
	if respErr != nil {
		os.Remove(part)
		return eris.Wrap(respErr, "close ftp response")
	}

	if err := os.Rename(part, local); err != nil {
		os.Remove(part)
		return eris.Wrap(err, "move file into place")
	}
	return nil
}

func (c *Client) deleteRemote(conn *ftp.ServerConn, p Params, remote string, res *CheckResult) {
	if !p.DeleteAfterDownload {
		return
	}
	if err := conn.Delete(remote); err != nil {
		res.Errors++
		zap.L().Warn("ftp: delete failed", zap.String("file", remote), zap.Error(err))
		return
	}
	res.Deleted++
	zap.L().Info("ftp: deleted remote file", zap.String("file", remote))
}

// joinRemote joins remote path segments with forward slashes regardless of
// the local OS separator.
func joinRemote(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}

// existsWithSize reports whether a local file exists with exactly the given
// size. Size zero on the remote side is treated as unknown and never skips.
func existsWithSize(local string, size uint64) bool {
	if size == 0 {
		return false
	}
	info, err := os.Stat(local)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && uint64(info.Size()) == size
}
