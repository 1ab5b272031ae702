// Package fileoutput registers the "file" stage: writes each event as a
// JSON line to a templated filename, rotating by size and optionally
// compressing rolled files, grounded on
// original_source/test/test_outputs.py::FileTests.
package fileoutput

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("file", New)
}

// rollingFile is one templated-filename destination's open handle plus its
// rotation bookkeeping.
type rollingFile struct {
	path string
	f    *os.File
	size int64
}

type fileOutput struct {
	*stage.StageBase

	template string
	maxSize  int64
	maxCount int
	compress string

	mu    sync.Mutex
	files map[string]*rollingFile
}

// New builds the "file" output. Options: "filename" (required template,
// e.g. "output_{program}.log"), "max_size" (bytes, 0 disables rotation),
// "max_count" (rolled-file retention, 0 keeps all), "compress" ("gz" or
// "bz2", rolled files only).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	template := opts.String("filename", "")
	if template == "" {
		return nil, fmt.Errorf("%w: file: missing required option \"filename\"", stage.ErrConfiguration)
	}
	switch c := opts.String("compress", ""); c {
	case "", "gz", "bz2":
	default:
		return nil, fmt.Errorf("%w: file: unknown compress %q", stage.ErrConfiguration, c)
	}

	f := &fileOutput{
		template: template,
		maxSize:  int64(opts.Int("max_size", 0)),
		maxCount: opts.Int("max_count", 0),
		compress: opts.String("compress", ""),
		files:    make(map[string]*rollingFile),
	}
	f.StageBase = stage.New(name, f, opts.Int("queue_size", 64), logger)
	return f, nil
}

func (f *fileOutput) Process(ev *event.Event) (bool, error) {
	path, err := ev.Format(f.template, nil, false)
	if err != nil {
		return false, fmt.Errorf("file: %w", err)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return false, fmt.Errorf("file: %w", err)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Write(body)
	buf.WriteByte('\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	rf, err := f.open(path)
	if err != nil {
		return false, fmt.Errorf("file: %w", err)
	}

	if f.maxSize > 0 && rf.size > 0 && rf.size+int64(buf.Len()) > f.maxSize {
		if err := f.roll(rf); err != nil {
			return false, fmt.Errorf("file: %w", err)
		}
	}

	n, err := rf.f.Write(buf.Bytes())
	rf.size += int64(n)
	if err != nil {
		return false, fmt.Errorf("file: %w", err)
	}
	return false, nil
}

func (f *fileOutput) open(path string) (*rollingFile, error) {
	if rf, ok := f.files[path]; ok {
		return rf, nil
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	rf := &rollingFile{path: path, f: fh, size: st.Size()}
	f.files[path] = rf
	return rf, nil
}

// roll closes rf's current file, shifts output.log -> output.log.1 ->
// output.log.2 ... (optionally compressing the newly-rolled file), prunes
// beyond maxCount, reopens output.log, and emits a "fileroll" event naming
// the file the rotation just produced (spec: test_max_size's fileroll
// assertion).
func (f *fileOutput) roll(rf *rollingFile) error {
	rf.f.Close()

	// previously rolled files carry the compression extension, if any.
	ext := ""
	if f.compress != "" {
		ext = "." + f.compress
	}
	if f.maxCount > 0 {
		oldest := fmt.Sprintf("%s.%d%s", rf.path, f.maxCount, ext)
		os.Remove(oldest)
		for i := f.maxCount - 1; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d%s", rf.path, i, ext)
			to := fmt.Sprintf("%s.%d%s", rf.path, i+1, ext)
			os.Rename(from, to)
		}
	} else {
		// shift everything up one slot, unbounded retention.
		n := 1
		for {
			if _, err := os.Stat(fmt.Sprintf("%s.%d%s", rf.path, n, ext)); err != nil {
				break
			}
			n++
		}
		for i := n; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d%s", rf.path, i, ext)
			to := fmt.Sprintf("%s.%d%s", rf.path, i+1, ext)
			os.Rename(from, to)
		}
	}

	rolled := rf.path + ".1"
	if err := os.Rename(rf.path, rolled); err != nil {
		return err
	}

	finalName := rolled
	if f.compress != "" {
		compressed, err := f.compressFile(rolled)
		if err != nil {
			return err
		}
		finalName = compressed
	}

	fh, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	rf.f = fh
	rf.size = 0

	if err := f.Output().Put(f.Ctx, event.New(map[string]any{
		"tags":     []string{"fileroll"},
		"filename": finalName,
	})); err != nil {
		f.Debug().Err(err).Msg("could not emit fileroll event")
	}
	return nil
}

func (f *fileOutput) compressFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	ext := "." + f.compress
	switch f.compress {
	case "gz":
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			w.Close()
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
	case "bz2":
		w, err := bzip2.NewWriter(&buf, nil)
		if err != nil {
			return "", err
		}
		if _, err := w.Write(raw); err != nil {
			w.Close()
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
	default:
		return path, nil
	}

	dst := path + ext
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	os.Remove(path)
	return dst, nil
}

// Stop flushes and closes every open file before the normal worker
// teardown.
func (f *fileOutput) Stop() {
	f.StageBase.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rf := range f.files {
		rf.f.Close()
	}
}
