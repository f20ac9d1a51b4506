package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// SecureStore is the OS secret-storage capability.
type SecureStore interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// SystemKeyring is the platform keychain (macOS Keychain, Secret Service,
// Windows Credential Manager).
type SystemKeyring struct{}

func (SystemKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (SystemKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (SystemKeyring) Delete(service, account string) error {
	return keyring.Delete(service, account)
}

// KeychainBackend adapts a SecureStore entry to Backend.
type KeychainBackend struct {
	Store   SecureStore
	Service string
	Account string
}

func (k *KeychainBackend) Kind() StorageKind { return KindKeychain }

func (k *KeychainBackend) Set(secret string) (err error) {
	defer recoverAsError(&err)
	return k.Store.Set(k.Service, k.Account, secret)
}

func (k *KeychainBackend) Get() (s string, err error) {
	defer recoverAsError(&err)
	s, err = k.Store.Get(k.Service, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return s, err
}

func (k *KeychainBackend) Delete() (err error) {
	defer recoverAsError(&err)
	return k.Store.Delete(k.Service, k.Account)
}

// recoverAsError turns a panicking capability into "unavailable".
func recoverAsError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("keychain: %v", r)
	}
}
