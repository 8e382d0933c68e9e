package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

var EncryptCommand = _encryptCommand{
	Name:        "encrypt",
	Description: "Encrypt a credential JSON object read from stdin",
}

type _encryptCommand struct {
	Name        string
	Description string
}

func (s _encryptCommand) Run(ctx context.Context, args []string) error {
	r, _, err := loadRuntime(s.Name, args, nil)
	if err != nil {
		return err
	}
	v, err := newVault(r)
	if err != nil {
		return err
	}

	plaintext, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		return fmt.Errorf("credential must be a JSON object: %w", err)
	}
	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		return err
	}
	fmt.Println(ciphertext)
	return nil
}

var DecryptCommand = _decryptCommand{
	Name:        "decrypt",
	Description: "Check that an encrypted credential read from stdin decrypts",
}

type _decryptCommand struct {
	Name        string
	Description string
}

// Run never prints the plaintext, only the credential's field names.
func (s _decryptCommand) Run(ctx context.Context, args []string) error {
	var check bool
	r, _, err := loadRuntime(s.Name, args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&check, "check", false, "verify the credential decrypts")
	})
	if err != nil {
		return err
	}
	if !check {
		return errors.New("decrypt only supports --check")
	}
	v, err := newVault(r)
	if err != nil {
		return err
	}

	ciphertext, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	var obj map[string]json.RawMessage
	if err := v.DecryptJSON(string(ciphertext), &obj); err != nil {
		return err
	}
	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	fmt.Printf("Credential OK (%s)\n", strings.Join(fields, ", "))
	return nil
}
