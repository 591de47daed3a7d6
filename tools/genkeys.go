// genkeys writes an ed25519 key pair for signing the audit ledger.
//
//	go run ./tools [-dir .eolsweep/keys] [-force]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"eolsweep/internal/security"
)

func main() {
	dir := flag.String("dir", ".eolsweep/keys", "Directory receiving the key files.")
	force := flag.Bool("force", false, "Replace an existing key pair.")
	flag.Parse()

	pubPath := filepath.Join(*dir, security.PublicKeyFile)
	privPath := filepath.Join(*dir, security.PrivateKeyFile)
	if _, err := os.Stat(privPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s exists, pass -force to replace it\n", privPath)
		os.Exit(1)
	}

	pub, priv, err := security.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
	if err := security.SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("# ======= Ed25519 ledger key pair =======")
	fmt.Println("public: ", pubPath)
	fmt.Println("private:", privPath)
	fmt.Println("# =======================================")
}
