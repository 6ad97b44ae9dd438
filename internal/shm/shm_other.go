// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package shm

// Create is not supported on this platform.
func Create(name string, size int) (*Region, error) {
	return nil, ErrUnsupported
}

// Open is not supported on this platform.
func Open(name string) (*Region, error) {
	return nil, ErrUnsupported
}

// Close is a no-op on this platform.
func (r *Region) Close() error {
	return nil
}

// Unlink is not supported on this platform.
func Unlink(name string) error {
	return ErrUnsupported
}

// Exists always reports false on this platform.
func Exists(name string) bool {
	return false
}
