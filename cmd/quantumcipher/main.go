package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/container"
	"github.com/evpix/quantum-cipher/quantumkey"
	"github.com/evpix/quantum-cipher/randsrc"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "qcipher"
	myApp.Usage = "deterministic authenticated file encryption over a lattice-flavoured block cipher"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "print full error stack traces",
		},
		cli.BoolFlag{
			Name:  "selfcheck",
			Usage: "run the built-in round-trip/reload scenarios and exit before any subcommand runs",
		},
		cli.BoolFlag{
			Name:  "parallel",
			Usage: "decrypt using a per-block worker pool instead of the sequential CBC path",
		},
		cli.IntFlag{
			Name:  "workers",
			Value: 0,
			Usage: "worker count for -parallel decrypt, 0 = runtime.NumCPU()",
		},
	}
	myApp.Before = func(c *cli.Context) error {
		if !c.GlobalBool("selfcheck") {
			return nil
		}
		if ok := runSelfCheck(); !ok {
			return cli.NewExitError("", 1)
		}
		os.Exit(0)
		return nil
	}
	myApp.Commands = []cli.Command{
		{
			Name:      "genkey",
			Usage:     "generate a new key file",
			ArgsUsage: "<length> <key_path>",
			Action:    actionGenkey,
		},
		{
			Name:      "encrypt",
			Usage:     "encrypt a file under a key",
			ArgsUsage: "<input_path> <output_path> <key_path>",
			Action:    actionEncrypt,
		},
		{
			Name:      "decrypt",
			Usage:     "decrypt a file under a key",
			ArgsUsage: "<input_path> <output_path> <key_path>",
			Action:    actionDecrypt,
		},
		{
			Name:      "info",
			Usage:     "print key metadata",
			ArgsUsage: "<key_path>",
			Action:    actionInfo,
		},
	}
	myApp.Run(os.Args)
}

func actionGenkey(c *cli.Context) error {
	if c.NArg() != 2 {
		return fail(c, cerrors.New(cerrors.InvalidInput, "usage: genkey <length> <key_path>"))
	}
	length, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return fail(c, cerrors.Wrap(cerrors.InvalidKeyLength, err, "length must be an unsigned integer"))
	}
	keyPath := c.Args().Get(1)

	if length >= quantumkey.MaxKeyLength/2 {
		color.Yellow("Warning: key length %d is close to the %d byte ceiling; generation may take a while and use significant memory.", length, quantumkey.MaxKeyLength)
	}

	key, err := quantumkey.Generate(randsrc.Default(), length)
	if err != nil {
		return fail(c, err)
	}
	data, err := key.Save()
	if err != nil {
		return fail(c, err)
	}
	if err := os.WriteFile(keyPath, data, 0o600); err != nil {
		return fail(c, cerrors.Wrap(cerrors.IOFailure, err, "writing key file"))
	}
	fmt.Printf("wrote key of length %d to %s\n", length, keyPath)
	return nil
}

func actionEncrypt(c *cli.Context) error {
	if c.NArg() != 3 {
		return fail(c, cerrors.New(cerrors.InvalidInput, "usage: encrypt <input_path> <output_path> <key_path>"))
	}
	key, err := loadKeyFile(c.Args().Get(2))
	if err != nil {
		return fail(c, err)
	}
	plaintext, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return fail(c, cerrors.Wrap(cerrors.IOFailure, err, "reading input file"))
	}
	out, err := container.Encrypt(key, plaintext, randsrc.Default())
	if err != nil {
		return fail(c, err)
	}
	if err := os.WriteFile(c.Args().Get(1), out, 0o600); err != nil {
		return fail(c, cerrors.Wrap(cerrors.IOFailure, err, "writing output file"))
	}
	fmt.Printf("encrypted %d bytes -> %d bytes\n", len(plaintext), len(out))
	return nil
}

func actionDecrypt(c *cli.Context) error {
	if c.NArg() != 3 {
		return fail(c, cerrors.New(cerrors.InvalidInput, "usage: decrypt <input_path> <output_path> <key_path>"))
	}
	key, err := loadKeyFile(c.Args().Get(2))
	if err != nil {
		return fail(c, err)
	}
	ciphertext, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return fail(c, cerrors.Wrap(cerrors.IOFailure, err, "reading input file"))
	}

	var plaintext []byte
	if c.GlobalBool("parallel") {
		plaintext, err = container.DecryptParallel(key, ciphertext, c.GlobalInt("workers"))
	} else {
		plaintext, err = container.Decrypt(key, ciphertext)
	}
	if err != nil {
		return fail(c, err)
	}
	if err := os.WriteFile(c.Args().Get(1), plaintext, 0o600); err != nil {
		return fail(c, cerrors.Wrap(cerrors.IOFailure, err, "writing output file"))
	}
	fmt.Printf("decrypted %d bytes -> %d bytes\n", len(ciphertext), len(plaintext))
	return nil
}

func actionInfo(c *cli.Context) error {
	if c.NArg() != 1 {
		return fail(c, cerrors.New(cerrors.InvalidInput, "usage: info <key_path>"))
	}
	key, err := loadKeyFile(c.Args().Get(0))
	if err != nil {
		return fail(c, err)
	}
	checksum := key.Checksum()
	fmt.Printf("key_length:        %d\n", key.KeyLength)
	fmt.Printf("pair_count:        %d\n", key.PairCount())
	fmt.Printf("lattice_dimension: %d\n", key.LatticeDim())
	fmt.Printf("bases_length:      %d\n", key.BasesLength())
	fmt.Printf("created_at:        %s\n", key.CreatedAt.Format(time.RFC3339))
	fmt.Printf("checksum[:16]:     %s\n", hex.EncodeToString(checksum[:16]))
	return nil
}

func loadKeyFile(path string) (*quantumkey.QuantumKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.IOFailure, err, "reading key file")
	}
	return quantumkey.Load(data)
}

// fail prints "Error: <message>" in red (or, under -v, the full pkg/errors
// stack trace) and returns a non-nil error so urfave/cli reports a
// non-zero exit without this package calling os.Exit directly.
func fail(c *cli.Context, err error) error {
	if c.GlobalBool("v") {
		color.Red("Error: %+v", err)
	} else {
		color.Red("Error: %s", err)
	}
	return cli.NewExitError("", 1)
}
