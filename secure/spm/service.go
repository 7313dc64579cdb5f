package spm

// VersionPolicy selects how a requested service version is matched against
// the supported one.
type VersionPolicy uint8

const (
	// VersionStrict accepts only an exact match.
	VersionStrict VersionPolicy = iota
	// VersionRelaxed accepts any requested version up to the supported one.
	VersionRelaxed
)

// Service describes one secure service visible through the mailbox. The
// descriptor is immutable once registered.
type Service struct {
	SID       uint32
	Name      string
	Version   uint32
	Policy    VersionPolicy
	Stateless bool
	// NSClients permits calls from the non-secure domain (negative client
	// ids).
	NSClients bool
	// AllowedClients, when non-empty, restricts access to the listed
	// translated client ids on top of the NSClients rule.
	AllowedClients []int32

	staticIndex int32
}

// Authorized reports whether the translated caller may reach this service.
func (s *Service) Authorized(clientID int32) bool {
	if clientID < 0 && !s.NSClients {
		return false
	}
	if len(s.AllowedClients) == 0 {
		return true
	}
	for _, id := range s.AllowedClients {
		if id == clientID {
			return true
		}
	}
	return false
}

// SupportsVersion applies the service's version policy to a requested
// version.
func (s *Service) SupportsVersion(version uint32) bool {
	switch s.Policy {
	case VersionRelaxed:
		return version <= s.Version
	default:
		return version == s.Version
	}
}

// StaticIndex is the registry position encoded into this service's static
// handle. Only meaningful for stateless services.
func (s *Service) StaticIndex() int32 {
	return s.staticIndex
}
