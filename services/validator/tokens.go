// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/zalando/go-keyring"
)

// keyringService namespaces hackvet entries in the OS keychain.
const keyringService = "hackvet"

// TokenStore keeps GitHub tokens in the operating system keychain,
// keyed by username. While a token is resident in this process it
// lives in a memguard locked buffer rather than a plain string, so it
// is excluded from swap and wiped on destroy.
type TokenStore struct {
	service string
}

// NewTokenStore returns a store bound to the hackvet keychain service.
func NewTokenStore() *TokenStore {
	return &TokenStore{service: keyringService}
}

// Set stores a token for username, replacing any previous one.
func (s *TokenStore) Set(username, token string) error {
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if err := keyring.Set(s.service, username, token); err != nil {
		return fmt.Errorf("storing token for %q: %w", username, err)
	}
	return nil
}

// Get retrieves the token for username into a locked buffer. The
// caller owns the buffer and must Destroy it when done; String() on
// the buffer yields the token for the API client.
func (s *TokenStore) Get(username string) (*memguard.LockedBuffer, error) {
	token, err := keyring.Get(s.service, username)
	if err != nil {
		return nil, fmt.Errorf("retrieving token for %q: %w", username, err)
	}
	// NewBufferFromBytes wipes the byte slice it is handed. The string
	// keyring returned is immutable and stays until GC; the locked
	// buffer is what callers hold and pass around from here on.
	return memguard.NewBufferFromBytes([]byte(token)), nil
}

// Delete removes the stored token for username.
func (s *TokenStore) Delete(username string) error {
	if err := keyring.Delete(s.service, username); err != nil {
		return fmt.Errorf("deleting token for %q: %w", username, err)
	}
	return nil
}
