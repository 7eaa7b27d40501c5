// Package configsvc provides a service for watching configuration files and notifying clients of changes.
package configsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"go.uber.org/zap"
)

type subscriber func(event fsnotify.Event)

type Service struct {
	log *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	subscribers []subscriber
	running     chan struct{}
	ready       chan struct{}
}

func New(log *zap.Logger) *Service {
	svc := &Service{
		log:   log,
		ready: make(chan struct{}),
	}
	return svc
}

func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	s.watcher = watcher
	defer s.watcher.Close()
	s.running = make(chan struct{})
	defer close(s.running)
	close(s.ready)
	s.log.Info("Config service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			for _, sub := range s.subscribers {
				sub(event)
			}
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", zap.Error(err))
		}
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Register registers a configuration file to watch for changes and calls fn with the new configuration.
// It returns the initial configuration and an error if the file cannot be read.
// Service instance is used as a parameter instead of the method receiver to enable generic types.
func Register[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	if err != nil {
		return def, fmt.Errorf("failed to read config: %w", err)
	}

	dir := filepath.Dir(absPath)
	err = s.watcher.Add(dir)
	if err != nil {
		return def, fmt.Errorf("failed to add path to watcher %s: %w", path, err)
	}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, func(event fsnotify.Event) {
		// TODO: debounce
		if event.Name == absPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
			newConfig, err := readConfig(absPath, def)
			fn(newConfig, err)
		}
	})
	s.mu.Unlock()

	return config, nil
}

func RegisterWriteable[T any](s *Service, path string, def T, fn func(config T, err error) error) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	switch {
	case os.IsNotExist(err):
		err = writeConfig(absPath, def)
		if err != nil {
			return def, fmt.Errorf("failed to initialize config: %w", err)
		}
		config = def
	case err != nil:
		return def, fmt.Errorf("failed to read config: %w", err)
	}
	return config, nil
}

// DirEntry is one file loaded from a RegisterDir tree, decoded into T.
type DirEntry[T any] struct {
	Path     string
	Priority int // numeric filename prefix, lower sorts first (spec.md §4.1.1)
	Config   T
}

// RegisterDir watches one or more directory roots (later roots override
// earlier ones by basename, matching spec.md §6's "the former overrides"
// relationship between /etc and /usr/share trees) for YAML files and
// decodes each into T. It returns the initial sorted snapshot and invokes fn
// on every subsequent create/write/remove under any of the roots. Entries
// are sorted by the numeric prefix of their filename (e.g. "10-foo.yaml"
// sorts before "20-bar.yaml"), per spec.md §4.1's configuration priority.
func RegisterDir[T any](s *Service, roots []string, fn func(entries []DirEntry[T])) ([]DirEntry[T], error) {
	load := func() ([]DirEntry[T], error) {
		return loadDirTree[T](roots)
	}
	entries, err := load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", root, err)
		}
		if err := os.MkdirAll(absRoot, 0755); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to ensure config dir %s: %w", absRoot, err)
		}
		if err := s.watcher.Add(absRoot); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to watch dir %s: %w", absRoot, err)
		}
	}
	s.subscribers = append(s.subscribers, func(event fsnotify.Event) {
		if !isUnderAny(event.Name, roots) {
			return
		}
		if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
			return
		}
		entries, err := load()
		if err != nil {
			s.log.Error("failed to reload config dir", zap.Error(err))
			return
		}
		fn(entries)
	})
	s.mu.Unlock()

	return entries, nil
}

func isUnderAny(path string, roots []string) bool {
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if strings.HasPrefix(path, absRoot+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func loadDirTree[T any](roots []string) ([]DirEntry[T], error) {
	byBase := make(map[string]DirEntry[T])
	var order []string
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", root, err)
		}
		files, err := os.ReadDir(absRoot)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config dir %s: %w", absRoot, err)
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
				continue
			}
			path := filepath.Join(absRoot, name)
			var def T
			cfg, err := readConfig(path, def)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			if _, seen := byBase[name]; !seen {
				order = append(order, name)
			}
			byBase[name] = DirEntry[T]{Path: path, Priority: filenamePriority(name), Config: cfg}
		}
	}
	entries := make([]DirEntry[T], 0, len(order))
	for _, name := range order {
		entries = append(entries, byBase[name])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority < entries[j].Priority
	})
	return entries, nil
}

// filenamePriority extracts the leading numeric prefix of a filename
// ("50-gamepad.yaml" -> 50), defaulting to a large value so unprefixed files
// sort last without erroring.
func filenamePriority(name string) int {
	digits := 0
	value := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			break
		}
		value = value*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 1 << 30
	}
	return value
}

func writeConfig[T any](path string, config T) error {
	jsonB, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	yamlB, err := yaml.JSONToYAML(jsonB)
	if err != nil {
		return fmt.Errorf("failed to convert json to yaml: %w", err)
	}

	err = os.WriteFile(path, yamlB, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func readConfig[T any](path string, def T) (T, error) {
	yamlB, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read config file: %w", err)
	}

	jsonB, err := yaml.YAMLToJSON(yamlB)
	if err != nil {
		return def, fmt.Errorf("failed to convert yaml to json: %w", err)
	}
	err = json.Unmarshal(jsonB, &def)
	if err != nil {
		return def, fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return def, nil
}
