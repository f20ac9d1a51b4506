package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"recon-ledger/internal/util"
)

var machineSalt = []byte("recon-ledger/machine-key/v1")

// MachineAttributes are the inputs of the file key. Only attributes that do
// not change while the app is installed belong here; the hostname does not.
type MachineAttributes struct {
	Platform   string
	Arch       string
	HomeDir    string
	AppDataDir string
}

// CurrentMachine reads the attributes of this machine.
func CurrentMachine(appDataDir string) MachineAttributes {
	home, _ := os.UserHomeDir()
	return MachineAttributes{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		HomeDir:    home,
		AppDataDir: appDataDir,
	}
}

func (a MachineAttributes) key() []byte {
	material := strings.Join([]string{a.Platform, a.Arch, a.HomeDir, a.AppDataDir}, "|")
	return util.DeriveKey(material, machineSalt)
}

// FileBackend keeps the secret in a file sealed with a machine-derived key.
type FileBackend struct {
	Path    string
	Machine MachineAttributes
}

func (f *FileBackend) Kind() StorageKind { return KindFile }

// Set writes hex(iv):hex(tag):hex(ciphertext) with owner-only permissions.
func (f *FileBackend) Set(secret string) error {
	iv, tag, ct, err := util.Seal(f.Machine.key(), []byte(secret))
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".secret-*")
	if err != nil {
		return fmt.Errorf("create temp secret: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod secret: %w", err)
	}
	if _, err := tmp.WriteString(util.EncodeSealed(iv, tag, ct)); err != nil {
		tmp.Close()
		return fmt.Errorf("write secret: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close secret: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("install secret: %w", err)
	}
	return nil
}

// Get distinguishes a missing file, a malformed file and a file that
// fails authentication.
func (f *FileBackend) Get() (string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read secret: %w", err)
	}
	iv, tag, ct, ok := util.DecodeSealed(strings.TrimSpace(string(raw)))
	if !ok {
		return "", ErrCorruptFormat
	}
	plain, err := util.Open(f.Machine.key(), iv, tag, ct)
	if err != nil {
		return "", ErrDecryptFailure
	}
	return string(plain), nil
}

func (f *FileBackend) Delete() error {
	if err := os.Remove(f.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove secret: %w", err)
	}
	return nil
}
