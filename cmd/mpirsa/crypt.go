// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/iofinnet/mpi-rsa/bus"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
	"github.com/iofinnet/mpi-rsa/tss/rsa/cipher"
	"github.com/iofinnet/mpi-rsa/tss/rsa/keygen"
)

const defaultMessage = "Möge die Macht mit dir sein!"

// recipientKey loads the key of the direction's recipient. TCP ranks other than 0 get nil.
func (a *app) recipientKey(ctx context.Context) (*rsa.PrivateKey, error) {
	if a.cfg.HostFile != "" && a.cfg.Rank != 0 {
		return nil, nil
	}
	store, closeStore, err := keygen.OpenKeyStore(ctx, a.cfg.Keys)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load(ctx, a.cfg.KeyDirection().Recipient())
}

func coordinatorKey(c *bus.Comm, key *rsa.PrivateKey) *rsa.PrivateKey {
	if c.Rank() == 0 {
		return key
	}
	return nil
}

func readInput(args []string, file, fallback string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", tss.NewError(tss.IOError, errors.Wrapf(err, "read %s", file), "read-input", -1)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return fallback, nil
	}
}

func writeOutput(file, text string) error {
	if file == "" {
		return nil
	}
	if err := os.WriteFile(file, []byte(text), 0o644); err != nil {
		return tss.NewError(tss.IOError, errors.Wrapf(err, "write %s", file), "write-output", -1)
	}
	return nil
}

func (a *app) encryptCmd() *cobra.Command {
	var inFile, outFile string
	cmd := &cobra.Command{
		Use:   "encrypt [message]",
		Short: "Encrypt a message with the recipient's public key across the group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := readInput(args, inFile, defaultMessage)
			if err != nil {
				return err
			}
			key, err := a.recipientKey(ctx)
			if err != nil {
				return err
			}
			policy := a.cfg.SchedulingPolicy()
			ct, ok, err := group(ctx, a, func(ctx context.Context, c *bus.Comm) (string, error) {
				var pub *rsa.PublicKey
				if k := coordinatorKey(c, key); k != nil {
					pub = k.Public()
				}
				return cipher.NewEngine(c, policy).EncryptText(ctx, text, pub)
			})
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(a.out, "=== ciphertext (%s, %s) ===\n%s\n", a.cfg.KeyDirection(), policy, ct)
			return writeOutput(outFile, ct)
		},
	}
	cmd.Flags().StringVar(&inFile, "in", "", "read the plaintext from this file")
	cmd.Flags().StringVar(&outFile, "out", "", "also write the base64 ciphertext to this file")
	return cmd
}

func (a *app) decryptCmd() *cobra.Command {
	var inFile, outFile string
	cmd := &cobra.Command{
		Use:   "decrypt [base64]",
		Short: "Decrypt a base64 ciphertext with the recipient's private key across the group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ct, err := readInput(args, inFile, "")
			if err != nil {
				return err
			}
			if strings.TrimSpace(ct) == "" {
				return tss.Errorf(tss.InputError, "decrypt", -1, "no ciphertext given")
			}
			key, err := a.recipientKey(ctx)
			if err != nil {
				return err
			}
			policy := a.cfg.SchedulingPolicy()
			text, ok, err := group(ctx, a, func(ctx context.Context, c *bus.Comm) (string, error) {
				return cipher.NewEngine(c, policy).DecryptText(ctx, ct, coordinatorKey(c, key))
			})
			if err != nil || !ok {
				return err
			}
			fmt.Fprintln(a.out, text)
			return writeOutput(outFile, text)
		},
	}
	cmd.Flags().StringVar(&inFile, "in", "", "read the base64 ciphertext from this file")
	cmd.Flags().StringVar(&outFile, "out", "", "also write the plaintext to this file")
	return cmd
}

func (a *app) roundTripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip [message]",
		Short: "Encrypt and decrypt a message and check that it survives",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, _ := readInput(args, "", defaultMessage)
			key, err := a.recipientKey(ctx)
			if err != nil {
				return err
			}
			policy := a.cfg.SchedulingPolicy()
			type trip struct{ ct, pt string }
			res, ok, err := group(ctx, a, func(ctx context.Context, c *bus.Comm) (trip, error) {
				engine := cipher.NewEngine(c, policy)
				k := coordinatorKey(c, key)
				var pub *rsa.PublicKey
				if k != nil {
					pub = k.Public()
				}
				ct, err := engine.EncryptText(ctx, text, pub)
				if err != nil {
					return trip{}, err
				}
				pt, err := engine.DecryptText(ctx, ct, k)
				return trip{ct: ct, pt: pt}, err
			})
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(a.out, "=== ciphertext (%s, %s) ===\n%s\n=== plaintext ===\n%s\n", a.cfg.KeyDirection(), policy, res.ct, res.pt)
			if res.pt != norm.NFC.String(text) {
				return tss.Errorf(tss.StateError, "roundtrip", 0, "decrypted text differs from the input")
			}
			return nil
		},
	}
}

func (a *app) modPowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modpow <base> <exp> <mod>",
		Short: "Compute one modular exponentiation with the bits of the exponent split across the group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := make([]*big.Int, len(args))
			for i, arg := range args {
				v, ok := new(big.Int).SetString(strings.TrimSpace(arg), 10)
				if !ok {
					return tss.Errorf(tss.InputError, "modpow", -1, "%q is not a decimal integer", arg)
				}
				in[i] = v
			}
			res, ok, err := group(cmd.Context(), a, func(ctx context.Context, c *bus.Comm) (*big.Int, error) {
				return cipher.ParallelModPow(ctx, c, in[0], in[1], in[2])
			})
			if err != nil || !ok {
				return err
			}
			fmt.Fprintln(a.out, res)
			return nil
		},
	}
}
