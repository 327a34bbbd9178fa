package dlog

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/robfig/cron/v3"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker) error
}

// Archiver moves the files of a log directory into a dated sub directory and
// truncates the originals. Writers obtained through guard pause while a
// rotation runs, so no line is split across archives.
type Archiver struct {
	dir      string
	uploader Uploader
	log      *slog.Logger
	now      func() time.Time
	mu       sync.RWMutex
	cron     *cron.Cron
}

func NewArchiver(dir string, uploader Uploader) *Archiver {
	return &Archiver{
		dir:      dir,
		uploader: uploader,
		log:      Discard(),
		now:      time.Now,
	}
}

type guardedWriter struct {
	a *Archiver
	w io.Writer
}

func (g guardedWriter) Write(p []byte) (int, error) {
	g.a.mu.RLock()
	defer g.a.mu.RUnlock()
	return g.w.Write(p)
}

func (a *Archiver) guard(w io.Writer) io.Writer {
	return guardedWriter{a: a, w: w}
}

// Schedule runs Rotate on the given cron spec until Stop.
func (a *Archiver) Schedule(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := a.Rotate(context.Background()); err != nil {
			a.log.Error("Log rotation failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule log archive %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	return nil
}

func (a *Archiver) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}

// Rotate archives every regular file in the log directory and returns the
// archive directory.
func (a *Archiver) Rotate(ctx context.Context) (string, error) {
	a.mu.Lock()
	archiveDir, archived, err := a.rotate()
	a.mu.Unlock()

	for _, name := range archived {
		a.log.Debug("Archived log", "file", name, "dir", archiveDir)
		if a.uploader == nil {
			continue
		}
		key := path.Join(filepath.Base(archiveDir), name)
		if err := a.upload(ctx, key, filepath.Join(archiveDir, name)); err != nil {
			a.log.Warn("Log upload failed", "key", key, "err", err)
		}
	}
	return archiveDir, err
}

func (a *Archiver) rotate() (string, []string, error) {
	name := a.now().AddDate(0, 0, -1).Format("2006-01-02")
	archiveDir := filepath.Join(a.dir, name)
	err := os.Mkdir(archiveDir, 0755)
	for counter := 1; os.IsExist(err); counter++ {
		archiveDir = filepath.Join(a.dir, name+"-"+strconv.Itoa(counter))
		err = os.Mkdir(archiveDir, 0755)
	}
	if err != nil {
		return "", nil, fmt.Errorf("create archive dir: %w", err)
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return archiveDir, nil, fmt.Errorf("read log dir: %w", err)
	}
	var archived []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		src := filepath.Join(a.dir, entry.Name())
		if _, err := copyFile(filepath.Join(archiveDir, entry.Name()), src); err != nil {
			return archiveDir, archived, err
		}
		if err := os.Truncate(src, 0); err != nil {
			return archiveDir, archived, fmt.Errorf("truncate %s: %w", src, err)
		}
		archived = append(archived, entry.Name())
	}
	return archiveDir, archived, nil
}

func (a *Archiver) upload(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.uploader.Upload(ctx, key, f)
}

func copyFile(dst, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", dst, err)
	}
	defer out.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, nil
}

type SpacesConfig struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
	Prefix   string
}

// SpacesUploader stores archives in an S3 compatible bucket.
type SpacesUploader struct {
	client *s3.S3
	bucket string
	prefix string
}

func NewSpacesUploader(cfg SpacesConfig) (*SpacesUploader, error) {
	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.Key, cfg.Secret, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("create spaces session: %w", err)
	}
	return &SpacesUploader{client: s3.New(sess), bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (u *SpacesUploader) Upload(ctx context.Context, key string, body io.ReadSeeker) error {
	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(path.Join(u.prefix, key)),
		Body:   body,
		ACL:    aws.String("private"),
	})
	return err
}
