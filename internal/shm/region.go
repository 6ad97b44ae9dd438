// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package shm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned on platforms without shared-memory objects.
var ErrUnsupported = errors.New("shm: shared memory not supported on this platform")

// Prefix is prepended to every object name to keep objects of this
// package apart from unrelated files in the same directory.
const Prefix = "shmq_"

// Region is a mapped shared-memory object.
type Region struct {
	Name string
	Path string
	Mem  []byte
	fd   int
}

// Size returns the mapped length.
func (r *Region) Size() int {
	return len(r.Mem)
}

// Path returns the filesystem path backing the object name.
func Path(name string) string {
	name = Prefix + strings.ReplaceAll(name, string(filepath.Separator), "_")
	if dir := "/dev/shm"; isDir(dir) {
		return filepath.Join(dir, name)
	}
	return filepath.Join(os.TempDir(), name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
