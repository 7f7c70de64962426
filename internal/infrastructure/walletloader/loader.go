package walletloader

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyFileLoader reads the signing key of the local wallet from a file. The first non-empty line
// that is not a # comment must hold a hex private key, with or without 0x prefix.
type KeyFileLoader struct {
	filePath   string
	loggerInfo func(msg string, args ...any)
}

// NewKeyFileLoader creates a new KeyFileLoader.
func NewKeyFileLoader(filePath string, loggerInfo func(msg string, args ...any)) *KeyFileLoader {
	return &KeyFileLoader{
		filePath:   filePath,
		loggerInfo: loggerInfo,
	}
}

// LoadKey parses the private key from the configured file.
func (l *KeyFileLoader) LoadKey() (*ecdsa.PrivateKey, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %s: %w", l.filePath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key in %s at line %d: %w", l.filePath, lineNum, err)
		}
		if l.loggerInfo != nil {
			l.loggerInfo("Wallet key loaded", "path", l.filePath, "address", crypto.PubkeyToAddress(key.PublicKey).Hex())
		}
		return key, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning key file %s: %w", l.filePath, err)
	}
	return nil, fmt.Errorf("no private key found in %s", l.filePath)
}
