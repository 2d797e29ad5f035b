// Command hashpw reads a password from the terminal without echo and prints
// its bcrypt hash. Useful for seeding accounts directly in the database.
package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/avdeev/usersvc/internal/server/config"
	"github.com/avdeev/usersvc/internal/server/password"
)

func main() {
	cfg := config.LoadConfig()

	fmt.Fprint(os.Stderr, "Password: ")
	plaintext, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}

	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(string(plaintext))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	fmt.Println(hash)
}
