// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	pollIDChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pollIDLength = 6
	// largest multiple of len(pollIDChars) that fits in a byte
	pollIDCutoff = 252
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GeneratePollID creates a short join code from A-Z and 0-9.
// Bytes at or above the cutoff are discarded so every character is equally likely.
func GeneratePollID() (string, error) {
	result := make([]byte, 0, pollIDLength)
	buf := make([]byte, pollIDLength*2)

	for len(result) < pollIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate poll ID: %w", err)
		}
		for _, b := range buf {
			if b >= pollIDCutoff {
				continue
			}
			result = append(result, pollIDChars[int(b)%len(pollIDChars)])
			if len(result) == pollIDLength {
				break
			}
		}
	}

	return string(result), nil
}

// GenerateNominationID returns a 16 hex char ID
func GenerateNominationID() (string, error) {
	return GenerateID(8)
}

// GenerateParticipantID returns a random UUID
func GenerateParticipantID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate participant ID: %w", err)
	}
	return id.String(), nil
}
