package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/halcyon-audio/spindle/internal/errs"
)

// arlLength is the exact rune count a valid ARL secret must have.
const arlLength = 192

// ARL is the long-lived session secret used to authenticate with the
// gateway. It is intentionally a distinct type from a user token (see
// token.go) so a caller cannot accidentally pass one where the other is
// expected.
type ARL string

// DecryptSalt is the 16-byte value mixed into every track's key
// derivation alongside its track id. Like the ARL, it is never embedded
// in this repository: it must be supplied out of band via the secrets
// file, the same way the original implementation keeps it out of its
// own source tree.
type DecryptSalt [16]byte

type secretsFile struct {
	ARL  string `toml:"arl"`
	Salt string `toml:"decrypt_salt"`
}

// LoadARL reads and validates the ARL secret from the "arl" key of the
// TOML secrets file, the way the rest of this daemon's config is kept out
// of the general viper tree: the value carries a hard length invariant
// that deserves its own loader rather than living inside Config.
func LoadARL(path string) (ARL, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errs.New(errs.NotFound, "config: load arl", err)
	}
	if info.Size() > 1024 {
		return "", errs.New(errs.InvalidArgument, "config: load arl", errSecretsFileTooLarge)
	}

	var sf secretsFile
	if _, err := toml.DecodeFile(path, &sf); err != nil {
		return "", errs.New(errs.InvalidArgument, "config: load arl", err)
	}

	arl := ARL(sf.ARL)
	if err := arl.Validate(); err != nil {
		return "", errs.New(errs.InvalidArgument, "config: load arl", err)
	}
	return arl, nil
}

// Validate enforces the exact 192-rune length invariant.
func (a ARL) Validate() error {
	if len([]rune(a)) != arlLength {
		return errARLLength
	}
	return nil
}

// LoadDecryptSalt reads the "decrypt_salt" key from the same secrets
// file as LoadARL, expecting exactly 16 raw bytes.
func LoadDecryptSalt(path string) (DecryptSalt, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DecryptSalt{}, errs.New(errs.NotFound, "config: load decrypt salt", err)
	}
	if info.Size() > 1024 {
		return DecryptSalt{}, errs.New(errs.InvalidArgument, "config: load decrypt salt", errSecretsFileTooLarge)
	}

	var sf secretsFile
	if _, err := toml.DecodeFile(path, &sf); err != nil {
		return DecryptSalt{}, errs.New(errs.InvalidArgument, "config: load decrypt salt", err)
	}
	if len(sf.Salt) != 16 {
		return DecryptSalt{}, errs.New(errs.InvalidArgument, "config: load decrypt salt", errSaltLength)
	}

	var salt DecryptSalt
	copy(salt[:], sf.Salt)
	return salt, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var (
	errSecretsFileTooLarge = simpleErr("config: secrets file exceeds 1024 bytes")
	errARLLength           = simpleErr("config: arl must be exactly 192 characters")
	errSaltLength          = simpleErr("config: decrypt_salt must be exactly 16 bytes")
)
