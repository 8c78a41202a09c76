package core

// RunMeta is the identity of one model execution. It is created on START and
// shared, read-only, with the COMPLETE/FAIL events of the same run.
type RunMeta struct {
	// RunID is a globally unique token minted on START. Never reused.
	RunID string
	// Namespace is the logical grouping of the model (its project).
	Namespace string
	// Name is the model's unique id within the project.
	Name string
}

// TableRef is a fully qualified dataset name.
type TableRef struct {
	Namespace string
	Name      string
}

// String returns "namespace/name", or just the name when no namespace is set.
func (t TableRef) String() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "/" + t.Name
}
