package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// redactedValue is substituted for secret leaves in Dump output.
const redactedValue = "***redacted***"

// Tree is a registered set of ConfigValue leaves resolved together
// under one precedence chain: env > runtime override > user file >
// project file > default.
type Tree struct {
	mu        sync.RWMutex
	leaves    map[string]leaf
	lookupEnv func(string) (string, bool)
}

// NewTree builds an empty tree. lookupEnv defaults to os.LookupEnv;
// pass a stub for deterministic tests.
func NewTree(lookupEnv func(string) (string, bool)) *Tree {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Tree{leaves: make(map[string]leaf), lookupEnv: lookupEnv}
}

// Register adds a leaf to the tree. It returns an error if the name is
// already registered.
func (t *Tree) Register(l leaf) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.leaves[l.name()]; exists {
		return fmt.Errorf("config leaf %q already registered", l.name())
	}
	t.leaves[l.name()] = l
	return nil
}

// ResolveAll revalidates every registered leaf against the supplied
// override/user-file/project-file layers. Resolution is total: every
// leaf is attempted even if an earlier one fails, and every failure is
// reported via the returned joined error.
func (t *Tree) ResolveAll(override, userFile, projectFile map[string]interface{}) error {
	t.mu.RLock()
	leaves := make([]leaf, 0, len(t.leaves))
	for _, l := range t.leaves {
		leaves = append(leaves, l)
	}
	lookupEnv := t.lookupEnv
	t.mu.RUnlock()

	var errs []error
	for _, l := range leaves {
		if err := l.resolve(lookupEnv, override, userFile, projectFile); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dump returns every leaf's current value, redacting secrets.
func (t *Tree) Dump() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]interface{}, len(t.leaves))
	for name, l := range t.leaves {
		if l.secret() {
			out[name] = redactedValue
			continue
		}
		out[name] = l.valueAny()
	}
	return out
}

// Value returns the leaf registered under name as T, or an error if the
// leaf is missing or registered under a different type.
func Value[T any](t *Tree, name string) (T, error) {
	var zero T
	t.mu.RLock()
	l, ok := t.leaves[name]
	t.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("config leaf %q not registered", name)
	}
	cv, ok := l.(*ConfigValue[T])
	if !ok {
		return zero, fmt.Errorf("config leaf %q is not of the requested type", name)
	}
	return cv.Value(), nil
}

// LoadYAMLFile reads and decodes a YAML file into a flat override layer.
// A missing file is not an error — it returns an empty, non-nil map, so
// optional user/project config files behave like absent layers.
func LoadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	layer := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return layer, nil
}

var (
	singletonGuard sync.Once
	singletonTree  *Tree
	singletonErr   error
)

// Singleton guards first construction of the process-wide config tree:
// build runs at most once per process, and every caller — including
// whichever goroutines lose the race to trigger it — observes the same
// (*Tree, error) pair.
func Singleton(build func() (*Tree, error)) (*Tree, error) {
	singletonGuard.Do(func() {
		singletonTree, singletonErr = build()
	})
	return singletonTree, singletonErr
}

// ResetSingletonForTest clears the guarded singleton. It exists only for
// test isolation between cases that each construct their own tree.
func ResetSingletonForTest() {
	singletonGuard = sync.Once{}
	singletonTree = nil
	singletonErr = nil
}
