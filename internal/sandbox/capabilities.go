package sandbox

// Capabilities describes what the host offers for building sandboxes.
type Capabilities struct {
	// UserNamespace reports whether unprivileged user namespaces are enabled.
	UserNamespace bool
	// NewUIDMap and NewGIDMap are the resolved helper paths, empty when
	// the helper is not installed.
	NewUIDMap string `json:",omitempty"`
	NewGIDMap string `json:",omitempty"`
}

// EffectiveLevel returns how completely a sandbox can be built.
// "full" = user namespaces and both mapping helpers, "partial" = user
// namespaces without a complete helper pair, "minimal" = no user
// namespaces (prepare will fail).
func (c Capabilities) EffectiveLevel() string {
	if !c.UserNamespace {
		return "minimal"
	}
	if c.NewUIDMap != "" && c.NewGIDMap != "" {
		return "full"
	}
	return "partial"
}
