// Package rotation implements the key rotation chain (spec §4.C): a
// KeyVersion state machine (Created -> Grace -> Retired) managed under
// a configurable policy, a Manager tying the chain to an in-memory key
// cache, and a Vault interface for storing key material encrypted
// under a passphrase.
package rotation

import (
	"github.com/skylock-oss/skylock/config"
)

// Policy is an alias kept local so callers of this package don't need
// to import config directly for the common case.
type Policy = config.KeyRotationPolicy
