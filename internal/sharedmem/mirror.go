package sharedmem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/Flickinny11/symphony/internal/filelock"
)

// mirror persists region snapshots to disk in fallback mode. Each
// snapshot is the region's committed version followed by its full
// contents, written atomically under an OS file lock so cooperating
// processes never observe a torn file. This is a best-effort transfer
// channel, not shared memory: a process only sees state that was
// committed before it last read the file.
type mirror struct {
	dir string
}

func newMirror(dir string) *mirror {
	return &mirror{dir: dir}
}

// path maps a region key to a file-safe snapshot path.
func (m *mirror) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(m.dir, safe+".region")
}

// write snapshots a region: 8-byte big-endian version, then the data.
func (m *mirror) write(key string, data []byte, version int64) error {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(version))
	copy(buf[8:], data)

	path := m.path(key)
	lock := filelock.New(path + ".lock")
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return filelock.AtomicWrite(path, buf)
}

// remove deletes a region's snapshot and lock file.
func (m *mirror) remove(key string) {
	path := m.path(key)
	os.Remove(path)
	os.Remove(path + ".lock")
}
