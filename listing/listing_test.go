package listing

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/martin-sucha/proxy-listing/apache2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

type scanRecord struct {
	dir             string
	parsed, skipped int
}

type recordingObserver struct {
	mu    sync.Mutex
	scans []scanRecord
}

func (o *recordingObserver) ObserveScan(dir string, parsed, skipped int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scans = append(o.scans, scanRecord{dir: dir, parsed: parsed, skipped: skipped})
}

func TestNew(t *testing.T) {
	assert.Equal(t, Listing{}, New())
	assert.NotNil(t, New())
	assert.Equal(t, Listing{"a/", "b/", "c/"}, New("c/", "a/", "b/", "a/", "c/"))
}

func TestMerge(t *testing.T) {
	assert.Equal(t, Listing{"x-ipstudio/", "x-nmos/"}, Merge(New("x-nmos/", "x-ipstudio/"), New()))
	assert.Equal(t, Listing{"a/", "x-nmos/"}, Merge(New("x-nmos/"), New("x-nmos/", "a/")))
	assert.Equal(t, Listing{}, Merge())
}

func TestScanner_ScanMissingDirectory(t *testing.T) {
	obs := &recordingObserver{}
	s := &Scanner{Observer: obs}
	dir := filepath.Join(t.TempDir(), "missing")

	l := s.Scan(dir, apache2.AliasMatcher())
	assert.Equal(t, Listing{}, l)
	assert.Equal(t, []scanRecord{{dir: dir}}, obs.scans)
}

func TestScanner_ScanFileAsDirectory(t *testing.T) {
	p := writeFile(t, t.TempDir(), "file.conf", "Alias /a/")
	s := &Scanner{}
	assert.Equal(t, Listing{}, s.Scan(p, apache2.AliasMatcher()))
}

func TestScanner_ScanEmptyDirectory(t *testing.T) {
	s := &Scanner{}
	assert.Equal(t, Listing{}, s.Scan(t.TempDir(), apache2.AliasMatcher()))
}

func TestScanner_ScanAliases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dummy.conf", "Alias /dummy/path/1/", "Alias /dimmy/path/2/")
	writeFile(t, dir, "notaconffile")
	writeFile(t, dir, "other.conf", "Alias /dummy/other/", "<Location /x-nmos/NICE/>")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "notafile"), 0o755))

	obs := &recordingObserver{}
	s := &Scanner{Observer: obs, Concurrency: 2}
	l := s.Scan(dir, apache2.AliasMatcher())
	assert.Equal(t, Listing{"dimmy/", "dummy/"}, l)
	assert.Equal(t, []scanRecord{{dir: dir, parsed: 3, skipped: 1}}, obs.scans)
}

func TestScanner_ScanFollowsSymlinks(t *testing.T) {
	available := t.TempDir()
	enabled := t.TempDir()
	target := writeFile(t, available, "site.conf", "Alias /linked/ /srv/linked/")
	require.NoError(t, os.Symlink(target, filepath.Join(enabled, "site.conf")))
	require.NoError(t, os.Symlink(filepath.Join(available, "gone.conf"), filepath.Join(enabled, "dangling.conf")))

	obs := &recordingObserver{}
	s := &Scanner{Observer: obs}
	assert.Equal(t, Listing{"linked/"}, s.Scan(enabled, apache2.AliasMatcher()))
	assert.Equal(t, []scanRecord{{dir: enabled, parsed: 1, skipped: 1}}, obs.scans)
}

func TestScanner_ScanLocations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "notafile"), 0o755))
	writeFile(t, dir, "notaconffile", "<Location /BAD/UNPLEASANT/")
	writeFile(t, dir, "dummy.conf", "<Location /ANGRY/UNMUTUAL/")
	writeFile(t, dir, "ips-api-dummy.conf", "<Location /x-ipstudio/GOOD/", "<Location /x-ipstudio/VGOOD/")
	writeFile(t, dir, "nmos-api-dummy.conf", "<Location /x-nmos/NICE/", "<Location /x-nmos/VNICE/")

	s := &Scanner{}
	assert.Equal(t, Listing{"GOOD/", "VGOOD/"}, s.Scan(dir, apache2.LocationMatcher("x-ipstudio")))
	assert.Equal(t, Listing{"NICE/", "VNICE/"}, s.Scan(dir, apache2.LocationMatcher("x-nmos")))
}

func TestScanner_ScanDeterministic(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"c.conf", "a.conf", "b.conf", "d.conf"} {
		writeFile(t, dir, name,
			"<Location /x-nmos/"+string(rune('z'-i))+"/>",
			"<Location /x-nmos/shared/>",
		)
	}
	s := &Scanner{Concurrency: 4}
	first := s.Scan(dir, apache2.LocationMatcher("x-nmos"))
	assert.Equal(t, Listing{"shared/", "w/", "x/", "y/", "z/"}, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Scan(dir, apache2.LocationMatcher("x-nmos")))
	}
}
