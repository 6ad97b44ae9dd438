// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import "errors"

var (
	// ErrDrainTimeout is returned by Close when the backend did not drain
	// the ring within the configured drain timeout.
	ErrDrainTimeout = errors.New("logq: drain timeout")

	// ErrUnknownTemplate is reported for records whose template ID is not
	// registered.
	ErrUnknownTemplate = errors.New("logq: unknown template")

	// ErrInvalidTemplate is returned by Register for malformed templates.
	ErrInvalidTemplate = errors.New("logq: invalid template")

	// ErrInvalidConfig is returned for configurations that fail
	// validation.
	ErrInvalidConfig = errors.New("logq: invalid config")
)
