// Package artifact archives the solver's output files into per-case result
// directories.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
	"github.com/AndreyAkinshin/sweepbench/internal/solver"
)

// KnownFiles are the canonical output files the solver may write into its
// working directory. Any subset may be present after a run.
var KnownFiles = []string{
	"DOS_data_origin.txt",
	"Current_data_origin.txt",
	"Conductance_data_origin.txt",
	"G_tilde_values.txt",
	"Ln_data_origin.txt",
	"results.txt",
}

// TimestampFormat is used in archival and log file names.
const TimestampFormat = "20060102_150405"

// stderrMarker separates stdout from stderr in the run log.
const stderrMarker = "\n=== STDERR ===\n"

// Artifact is one archived canonical file.
type Artifact struct {
	Name        string // canonical name, e.g. DOS_data_origin.txt
	ArchivePath string // composite-named copy, never overwritten
	LatestPath  string // canonical-named copy, overwritten on every run
}

// ArtifactSet is what one collection produced.
type ArtifactSet struct {
	Archived []Artifact
	Missing  []string
	LogPath  string
}

// Empty reports whether none of the known files were found.
func (s ArtifactSet) Empty() bool {
	return len(s.Archived) == 0
}

// Collector copies canonical files out of the solver's working directory.
type Collector struct {
	workDir string
	files   []string
}

// NewCollector creates a Collector. A nil files list means KnownFiles.
func NewCollector(workDir string, files []string) *Collector {
	if files == nil {
		files = KnownFiles
	}
	cp := make([]string, len(files))
	copy(cp, files)
	return &Collector{workDir: workDir, files: cp}
}

// Files returns the canonical file names this collector looks for.
func (c *Collector) Files() []string {
	cp := make([]string, len(c.files))
	copy(cp, c.files)
	return cp
}

// CaseDir returns the result directory for tc under root.
func CaseDir(root string, tc matrix.TestCase) string {
	return filepath.Join(root, fmt.Sprintf("test_case_%d_%s", tc.ID, tc.Name))
}

// CompositeName returns the archival name for a canonical file:
// <file>.<timestamp>_<scalar signature>.
func CompositeName(file string, tc matrix.TestCase, ts time.Time) string {
	name := file + "." + ts.Format(TimestampFormat)
	if sig := tc.ScalarSignature(); sig != "" {
		name += "_" + sig
	}
	return name
}

// Collect writes the run log and archives every known file present in the
// working directory into dir. Missing files are skipped, not reported as
// errors; only filesystem failures are.
func (c *Collector) Collect(tc matrix.TestCase, ts time.Time, dir string, run solver.RunResult) (ArtifactSet, error) {
	var set ArtifactSet

	if err := os.MkdirAll(dir, 0755); err != nil {
		return set, fmt.Errorf("create result directory: %w", err)
	}

	logPath, err := WriteLog(dir, ts, run)
	if err != nil {
		return set, err
	}
	set.LogPath = logPath

	for _, name := range c.files {
		src := filepath.Join(c.workDir, name)
		info, err := os.Stat(src)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
			set.Missing = append(set.Missing, name)
			continue
		}
		if err != nil {
			return set, fmt.Errorf("stat %s: %w", name, err)
		}

		archivePath, err := uniquePath(filepath.Join(dir, CompositeName(name, tc, ts)))
		if err != nil {
			return set, err
		}
		if err := copyFile(src, archivePath); err != nil {
			return set, fmt.Errorf("archive %s: %w", name, err)
		}

		latestPath := filepath.Join(dir, name)
		if err := copyFile(src, latestPath); err != nil {
			return set, fmt.Errorf("copy %s: %w", name, err)
		}

		set.Archived = append(set.Archived, Artifact{
			Name:        name,
			ArchivePath: archivePath,
			LatestPath:  latestPath,
		})
	}

	return set, nil
}

// WriteLog writes output_<timestamp>.txt into dir with the captured stdout,
// followed by a delimited stderr section when stderr is non-empty. ANSI
// escape sequences are stripped.
func WriteLog(dir string, ts time.Time, run solver.RunResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create result directory: %w", err)
	}

	var b strings.Builder
	b.WriteString(stripansi.Strip(run.Stdout))
	if run.Stderr != "" {
		b.WriteString(stderrMarker)
		b.WriteString(stripansi.Strip(run.Stderr))
	}

	path, err := uniquePath(filepath.Join(dir, "output_"+ts.Format(TimestampFormat)+".txt"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

// uniquePath returns path, or path with a ".N" suffix if path already exists,
// so archives from runs within the same second never overwrite each other.
func uniquePath(path string) (string, error) {
	candidate := path
	for i := 1; ; i++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s.%d", path, i)
	}
}

// copyFile copies src to dst, preserving mode and modification time.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
