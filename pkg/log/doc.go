/*
Package log provides structured logging for Keeto using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. Logs default to stderr so that the authorized_keys
output on stdout stays parseable by sshd.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component loggers:

	resolverLog := log.WithComponent("resolver")
	resolverLog.Info().Str("server_dn", dn).Msg("located server entry")

Login-scoped context:

	uidLog := log.WithUID("alice")
	uidLog.Debug().Msg("filtering access profiles")

# Integration Points

  - pkg/resolver: directory walk and profile classification records
  - pkg/security: certificate store loading
  - pkg/keystore: per-key derivation, dropped certificates and output assembly
  - cmd/keeto: logger setup and the ldap-offline warning
*/
package log
