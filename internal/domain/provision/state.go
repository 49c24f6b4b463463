package provision

import "time"

// Actor identifies who performed a provisioning run.
type Actor struct {
	// Hostname is the machine name where the run was performed.
	Hostname string
	// Username is the system user who triggered the run.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// State records what previous installer runs have already accomplished.
// It backs the idempotency checks: a re-run on a provisioned machine skips
// every step whose outcome is still present on disk.
type State struct {
	// Timestamp is when the state was last updated.
	Timestamp time.Time
	// LastActor is the user who last ran the installer.
	LastActor *Actor
	// CompletedSteps lists step names that finished successfully.
	CompletedSteps []string
	// InstalledPackages lists pip packages confirmed present in the venv.
	InstalledPackages []string
	// VerifiedDatasets maps dataset names to the base64 checksum that was
	// verified after download. Datasets without configured checksums map to
	// an empty string.
	VerifiedDatasets map[string]string
}

// NewState returns an empty state ready for recording.
func NewState() *State {
	return &State{
		VerifiedDatasets: make(map[string]string),
	}
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	cloned := &State{
		Timestamp:         s.Timestamp,
		LastActor:         s.LastActor.Clone(),
		CompletedSteps:    append([]string(nil), s.CompletedSteps...),
		InstalledPackages: append([]string(nil), s.InstalledPackages...),
		VerifiedDatasets:  make(map[string]string, len(s.VerifiedDatasets)),
	}

	for name, sum := range s.VerifiedDatasets {
		cloned.VerifiedDatasets[name] = sum
	}

	return cloned
}

// MarkStep records a successfully completed step. Repeated calls are no-ops.
func (s *State) MarkStep(name string) {
	if s.StepDone(name) {
		return
	}

	s.CompletedSteps = append(s.CompletedSteps, name)
}

// StepDone reports whether the named step completed in an earlier run.
func (s *State) StepDone(name string) bool {
	for _, step := range s.CompletedSteps {
		if step == name {
			return true
		}
	}

	return false
}

// MarkPackage records a pip package confirmed installed. Repeated calls are no-ops.
func (s *State) MarkPackage(name string) {
	if s.PackageInstalled(name) {
		return
	}

	s.InstalledPackages = append(s.InstalledPackages, name)
}

// PackageInstalled reports whether the package was installed by an earlier run.
func (s *State) PackageInstalled(name string) bool {
	for _, pkg := range s.InstalledPackages {
		if pkg == name {
			return true
		}
	}

	return false
}

// MarkDataset records a verified dataset download and its checksum.
func (s *State) MarkDataset(name, checksum string) {
	if s.VerifiedDatasets == nil {
		s.VerifiedDatasets = make(map[string]string)
	}

	s.VerifiedDatasets[name] = checksum
}

// DatasetVerified reports whether the dataset was verified with the same
// checksum in an earlier run. A dataset recorded without a checksum only
// matches when no checksum is expected now either.
func (s *State) DatasetVerified(name, checksum string) bool {
	recorded, ok := s.VerifiedDatasets[name]
	if !ok {
		return false
	}

	return recorded == checksum
}

// Touch stamps the state with the current time and the acting user.
func (s *State) Touch(actor *Actor) {
	s.Timestamp = time.Now().UTC()
	s.LastActor = actor.Clone()
}
