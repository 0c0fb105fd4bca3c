// Утилита подготовки секретов для .env:
//
//	secrets keygen                 - новый ENCRYPTION_KEY
//	secrets seal <token>           - FIVEPAISA_ACCESS_TOKEN_ENC из токена (ключ из ENCRYPTION_KEY)
//	secrets hash [-cost N] <secret> - bcrypt хеш для SCHEDULER_SECRET
package main

import (
	"flag"
	"fmt"
	"os"

	"autoexit/pkg/crypto"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	out, err := runCommand(os.Args[1], os.Args[2:], os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func runCommand(cmd string, args []string, encryptionKey string) (string, error) {
	switch cmd {
	case "keygen":
		return crypto.GenerateKeyString()

	case "seal":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: secrets seal <token>")
		}
		if encryptionKey == "" {
			return "", fmt.Errorf("ENCRYPTION_KEY is not set")
		}
		return crypto.SealToken(args[0], encryptionKey)

	case "hash":
		fs := flag.NewFlagSet("hash", flag.ContinueOnError)
		cost := fs.Int("cost", crypto.DefaultCost, "bcrypt cost")
		if err := fs.Parse(args); err != nil {
			return "", err
		}
		if fs.NArg() != 1 {
			return "", fmt.Errorf("usage: secrets hash [-cost N] <secret>")
		}
		return crypto.HashSecret(fs.Arg(0), *cost)
	}

	return "", fmt.Errorf("unknown command %q", cmd)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: secrets keygen | seal <token> | hash [-cost N] <secret>")
}
