package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/advml-labs/labkit/internal/config"
	"github.com/advml-labs/labkit/internal/domain/provision"
)

// Repository defines persistence operations for the provisioning state.
type Repository interface {
	Load(ctx context.Context) (*provision.State, error)
	Save(ctx context.Context, state *provision.State) error
}

// FileRepository persists the provisioning state to a JSON file on disk.
// The file lives inside the lab home so wiping the lab also resets the
// recorded progress.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// persistedActor is the JSON shape of provision.Actor.
type persistedActor struct {
	Hostname string `json:"hostname"`
	Username string `json:"username"`
}

// persistedState is the JSON shape of provision.State.
type persistedState struct {
	Timestamp         time.Time         `json:"timestamp"`
	LastActor         *persistedActor   `json:"last_actor,omitempty"`
	CompletedSteps    []string          `json:"completed_steps,omitempty"`
	InstalledPackages []string          `json:"installed_packages,omitempty"`
	VerifiedDatasets  map[string]string `json:"verified_datasets,omitempty"`
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*provision.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc persistedState
	if err = json.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromPersisted(&doc), nil
}

// Save writes the state to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, state *provision.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(toPersisted(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromPersisted converts the JSON document into the domain State model.
func fromPersisted(doc *persistedState) *provision.State {
	var actor *provision.Actor
	if doc.LastActor != nil {
		actor = &provision.Actor{
			Hostname: doc.LastActor.Hostname,
			Username: doc.LastActor.Username,
		}
	}

	datasets := doc.VerifiedDatasets
	if datasets == nil {
		datasets = make(map[string]string)
	}

	return &provision.State{
		Timestamp:         doc.Timestamp,
		LastActor:         actor,
		CompletedSteps:    doc.CompletedSteps,
		InstalledPackages: doc.InstalledPackages,
		VerifiedDatasets:  datasets,
	}
}

// toPersisted converts the domain State model into its JSON document.
func toPersisted(state *provision.State) *persistedState {
	var actor *persistedActor
	if state.LastActor != nil {
		actor = &persistedActor{
			Hostname: state.LastActor.Hostname,
			Username: state.LastActor.Username,
		}
	}

	return &persistedState{
		Timestamp:         state.Timestamp,
		LastActor:         actor,
		CompletedSteps:    state.CompletedSteps,
		InstalledPackages: state.InstalledPackages,
		VerifiedDatasets:  state.VerifiedDatasets,
	}
}
