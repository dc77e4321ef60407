package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"rgehrsitz/assist/internal/history"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// fileHost is a demo host backed by plain files: an action log with one
// entry per line and a YAML scene description. Both are re-read on every
// query so they can be edited while the daemon runs.
type fileHost struct {
	logPath   string
	scenePath string
	operators map[string]map[string]struct{}
	logger    zerolog.Logger
}

type sceneObject struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type scene struct {
	Objects []sceneObject `yaml:"objects"`
}

type logCapture []string

func (c logCapture) Lines() []string { return c }

func newFileHost(logPath, scenePath string, operators []string, logger zerolog.Logger) *fileHost {
	h := &fileHost{
		logPath:   logPath,
		scenePath: scenePath,
		operators: make(map[string]map[string]struct{}),
		logger:    logger.With().Str("component", "host").Logger(),
	}
	for _, full := range operators {
		ns, op, ok := strings.Cut(full, ".")
		if !ok || ns == "" || op == "" {
			h.logger.Warn().Str("operator", full).Msg("Ignoring operator without namespace")
			continue
		}
		if h.operators[ns] == nil {
			h.operators[ns] = make(map[string]struct{})
		}
		h.operators[ns][op] = struct{}{}
	}
	return h
}

func (h *fileHost) Capture(context.Context) (history.Handle, error) {
	f, err := os.Open(h.logPath)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()
	var lines logCapture
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}
	return lines, nil
}

func (h *fileHost) Release(history.Handle) {}

func (h *fileHost) scene() (scene, error) {
	var s scene
	data, err := os.ReadFile(h.scenePath)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read scene: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode scene: %w", err)
	}
	return s, nil
}

func (h *fileHost) ObjectExists(_ context.Context, name string) (bool, error) {
	s, err := h.scene()
	if err != nil {
		return false, err
	}
	for _, obj := range s.Objects {
		if obj.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (h *fileHost) SceneEmpty(context.Context) (bool, error) {
	s, err := h.scene()
	if err != nil {
		return false, err
	}
	return len(s.Objects) == 0, nil
}

func (h *fileHost) HasNoCamera(context.Context) (bool, error) {
	s, err := h.scene()
	if err != nil {
		return false, err
	}
	for _, obj := range s.Objects {
		if strings.EqualFold(obj.Type, "camera") {
			return false, nil
		}
	}
	return true, nil
}

func (h *fileHost) OpenURL(_ context.Context, url string) error {
	h.logger.Info().Str("url", url).Msg("Opening url")
	return nil
}

func (h *fileHost) HasNamespace(ns string) bool {
	_, ok := h.operators[ns]
	return ok
}

func (h *fileHost) HasOperator(ns, op string) bool {
	_, ok := h.operators[ns][op]
	return ok
}

// InvokeOperator records the call in the action log, the way a real host
// would report it back.
func (h *fileHost) InvokeOperator(_ context.Context, ns, op string) error {
	f, err := os.OpenFile(h.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append action log: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "bpy.ops.%s.%s()\n", ns, op)
	return err
}
