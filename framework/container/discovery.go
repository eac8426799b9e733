package container

import "github.com/pkg/errors"

// Discovery replaces runtime "scan a folder and auto-register" behavior with
// an explicit manifest: an ordered list of registrations applied exactly
// once at startup. Applying a manifest produces the same descriptors as
// registering each entry by hand — it is sugar over explicit registration,
// never a runtime-dynamic mechanism. The resolution engine never re-scans.

// ManifestEntry describes one registrable service: either a Constructor (the
// autowire path) or a Factory plus explicit Identity. An unset Lifetime
// inherits the manifest default.
type ManifestEntry struct {
	Constructor any
	Factory     Factory
	Identity    any // required with Factory, optional As-identity otherwise
	Lifetime    Lifetime
	Tags        []string
}

// Manifest is a startup-time discovery unit: a deterministic, ordered set of
// registrations sharing a default lifetime policy.
type Manifest struct {
	DefaultLifetime Lifetime
	Entries         []ManifestEntry
}

// Apply registers every manifest entry in order, failing fast on the first
// registration error.
func (c *Container) Apply(manifests ...Manifest) error {
	for _, m := range manifests {
		for i, e := range m.Entries {
			if err := c.applyEntry(m, e); err != nil {
				return errors.WithMessagef(err, "manifest entry %d", i)
			}
		}
	}
	return nil
}

func (c *Container) applyEntry(m Manifest, e ManifestEntry) error {
	lifetime := e.Lifetime
	if lifetime == lifetimeUnspecified {
		lifetime = m.DefaultLifetime
	}

	var opts []RegisterOption
	if len(e.Tags) > 0 {
		opts = append(opts, WithTags(e.Tags...))
	}

	switch {
	case e.Factory != nil && e.Constructor != nil:
		return errors.New("container: entry declares both Constructor and Factory")
	case e.Factory != nil:
		if e.Identity == nil {
			return errors.New("container: factory entry requires an Identity")
		}
		return c.RegisterFactory(e.Identity, e.Factory, lifetime, opts...)
	case e.Constructor != nil:
		if e.Identity != nil {
			opts = append(opts, As(e.Identity))
		}
		return c.Register(e.Constructor, lifetime, opts...)
	default:
		return errors.New("container: entry declares neither Constructor nor Factory")
	}
}
