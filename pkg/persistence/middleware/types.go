package middleware

import "github.com/moonhollow/moonhollow/pkg/ports"

// Middleware allows wrapping a MessageStore to add behavior. The transcript
// is the only place player text lands at rest, so protection layers compose
// around it.
type Middleware func(ports.MessageStore) ports.MessageStore
