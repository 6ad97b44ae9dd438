// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package shm maps named OS shared-memory objects.
//
// Objects live under /dev/shm when it is available and under the system
// temporary directory otherwise. A Region is one mapping of one object in
// the current process; the same object may be mapped any number of times,
// by this process or others, at different base addresses.
package shm
