package driven

import (
	"github.com/custodia-labs/sweep/internal/core/domain"
)

// ConnectorBuilder creates a Connector for one source.
// Builders must not perform I/O.
type ConnectorBuilder func(creds domain.ConnectorCredentials) (Connector, error)

// ConnectorFactory creates connectors keyed on the source enum.
type ConnectorFactory interface {
	// Create returns a Connector bound to creds.
	// Returns domain.ErrUnsupportedSource if the source is unknown.
	Create(source domain.Source, creds domain.ConnectorCredentials) (Connector, error)

	// Register adds a connector builder for the given source.
	Register(source domain.Source, caps domain.Capability, builder ConnectorBuilder)

	// Capabilities returns the declared capability set for a source.
	Capabilities(source domain.Source) (domain.Capability, error)

	// SupportedSources returns all registered sources.
	SupportedSources() []domain.Source
}
