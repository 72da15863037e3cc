package core

import "github.com/dkeye/meetsync/internal/domain"

// Credential is supplied by the authentication layer. An empty token means
// no credential is available.
type Credential struct {
	Token string
	User  domain.LocalUser
}

func (c Credential) Valid() bool { return c.Token != "" }
