package ports

import "github.com/bft-labs/stableopt/pkg/log"

// Logger is the structured logging port. It aliases the public interface so
// library users and internal packages share one logger type.
type Logger = log.Logger

// Field is a structured logging key/value pair.
type Field = log.Field
