// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package shm

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// Create creates the named object with the given size and maps it.
//
// An object left behind under the same name (a previous run that did not
// clean up, or a name collision) is removed first. The new mapping is
// zero-filled.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: create %q: invalid size %d", name, size)
	}
	path := Path(name)
	if err := unix.Unlink(path); err == nil {
		slog.Warn("shm: removed stale object; last run crashed or name collision",
			"name", name, "path", path)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %q: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("shm: truncate %q to %d: %w", name, size, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("shm: mmap %q: %w", name, err)
	}
	return &Region{Name: name, Path: path, Mem: mem, fd: fd}, nil
}

// Open maps an existing object in full.
func Open(name string) (*Region, error) {
	path := Path(name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %q: %w", name, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: stat %q: %w", name, err)
	}
	if st.Size <= 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: open %q: empty object", name)
	}
	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: mmap %q: %w", name, err)
	}
	return &Region{Name: name, Path: path, Mem: mem, fd: fd}, nil
}

// Close unmaps the region and closes its descriptor.
// The object itself survives until [Unlink].
func (r *Region) Close() error {
	if r.Mem == nil {
		return nil
	}
	errMap := unix.Munmap(r.Mem)
	r.Mem = nil
	errFd := unix.Close(r.fd)
	r.fd = -1
	if errMap != nil {
		return fmt.Errorf("shm: munmap %q: %w", r.Name, errMap)
	}
	if errFd != nil {
		return fmt.Errorf("shm: close %q: %w", r.Name, errFd)
	}
	return nil
}

// Unlink removes the named object. Existing mappings stay valid.
func Unlink(name string) error {
	if err := unix.Unlink(Path(name)); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil
		}
		return fmt.Errorf("shm: unlink %q: %w", name, err)
	}
	return nil
}

// Exists reports whether the named object exists.
func Exists(name string) bool {
	var st unix.Stat_t
	return unix.Stat(Path(name), &st) == nil
}
