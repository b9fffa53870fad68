// Package ldap implements the RFC 4511 message envelope and the request
// parsers and response builders needed by the connection core: bind,
// unbind, abandon, extended operations and the base-scope search used for
// the Root DSE. Operation payloads the core does not own are carried as
// raw BER content for the pluggable handler layer.
package ldap
