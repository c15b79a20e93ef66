package sessiongate

// Credential is the stored verifier for one subject. It is created at
// registration, consulted at login, and never serialized to the client.
// The raw password exists only transiently inside Register and Login.
type Credential struct {
	// Subject is the opaque identifier carried in token claims.
	Subject string
	// Identifier is the login handle (typically an email address).
	Identifier string
	// PasswordHash is the PHC-encoded Argon2id verifier.
	PasswordHash string
}

// CredentialStore is the lookup-by-identity interface over the trusted
// credential backend. Implementations may block on synchronous driver I/O:
// the gateway only ever calls them through the bridge worker pool, never
// from the request-handling path.
//
// GetByIdentifier returns [ErrCredentialNotFound] for unknown identifiers;
// Create returns [ErrCredentialExists] for duplicates. Any other error is
// treated as storage unavailability.
type CredentialStore interface {
	GetByIdentifier(identifier string) (Credential, error)
	Create(cred Credential) error
	// Ping is a cheap liveness probe used by the readiness endpoint.
	Ping() error
}
