// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"
)

// ArgKind tells the backend how to decode an argument word.
type ArgKind uint8

const (
	KindInt ArgKind = iota
	KindUint
	KindFloat
	KindBool
	KindDuration
)

func (k ArgKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field names one template argument.
type Field struct {
	Name string
	Kind ArgKind
}

// Template is the static part of a log message.
type Template struct {
	ID      TemplateID
	Level   slog.Level
	Message string
	Fields  []Field
}

// attr decodes argument i of a record.
func (t *Template) attr(i int, a Arg) slog.Attr {
	if i >= len(t.Fields) {
		return slog.Uint64("arg"+strconv.Itoa(i), uint64(a))
	}
	f := t.Fields[i]
	switch f.Kind {
	case KindUint:
		return slog.Uint64(f.Name, uint64(a))
	case KindFloat:
		return slog.Float64(f.Name, math.Float64frombits(uint64(a)))
	case KindBool:
		return slog.Bool(f.Name, a != 0)
	case KindDuration:
		return slog.Duration(f.Name, time.Duration(a))
	default:
		return slog.Int64(f.Name, int64(a))
	}
}

// Templates is the registry shared by the producer and the backend.
//
// Register templates before logging. IDs are assigned in registration
// order starting at 1, so two processes that register the same templates
// in the same order agree on every ID.
type Templates struct {
	mu   sync.RWMutex
	list []Template
}

// NewTemplates creates an empty registry.
func NewTemplates() *Templates {
	return &Templates{}
}

// Register adds a template and returns its ID.
func (t *Templates) Register(level slog.Level, msg string, fields ...Field) (TemplateID, error) {
	if msg == "" {
		return 0, fmt.Errorf("%w: empty message", ErrInvalidTemplate)
	}
	if len(fields) > MaxArgs {
		return 0, fmt.Errorf("%w: %q has %d fields, max %d", ErrInvalidTemplate, msg, len(fields), MaxArgs)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := TemplateID(len(t.list) + 1)
	t.list = append(t.list, Template{
		ID:      id,
		Level:   level,
		Message: msg,
		Fields:  append([]Field(nil), fields...),
	})
	return id, nil
}

// MustRegister is like Register but panics on error.
func (t *Templates) MustRegister(level slog.Level, msg string, fields ...Field) TemplateID {
	id, err := t.Register(level, msg, fields...)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup returns the template with the given ID.
func (t *Templates) Lookup(id TemplateID) (*Template, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) > len(t.list) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTemplate, id)
	}
	return &t.list[id-1], nil
}

// Len returns the number of registered templates.
func (t *Templates) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.list)
}
